package strategy

import (
	"context"
	"fmt"

	"github.com/appnet-org/codecbench/internal/fixture"
	"github.com/appnet-org/codecbench/pkg/bench"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Protobuf compiles the User schema at setup time into a message
// descriptor and serializes through dynamic messages, so no generated code
// is involved.
type Protobuf struct {
	base
}

func NewProtobuf() *Protobuf {
	return &Protobuf{base{name: "protobuf", family: bench.FamilyRuntimeSchema}}
}

type protobufSession struct {
	user    protoreflect.MessageDescriptor
	address protoreflect.MessageDescriptor

	marshal   proto.MarshalOptions
	unmarshal proto.UnmarshalOptions

	// User fields
	id, name, age, gender, email, phone, score, createdAt, tags, addr protoreflect.FieldDescriptor
	// Address fields
	province, city, street, zipCode protoreflect.FieldDescriptor
}

func field(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

// userSchema is the equivalent of:
//
//	message Address { string province = 1; string city = 2; string street = 3; int32 zipCode = 4; }
//	message User {
//	  string id = 1; string name = 2; int32 age = 3; bool gender = 4;
//	  string email = 5; string phone = 6; double score = 7; int64 createdAt = 8;
//	  repeated string tags = 9; Address address = 10;
//	}
func userSchema() *descriptorpb.FileDescriptorProto {
	tags := field("tags", 9, descriptorpb.FieldDescriptorProto_TYPE_STRING)
	tags.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()

	address := field("address", 10, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	address.TypeName = proto.String(".codecbench.Address")

	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String("codecbench/user.proto"),
		Package: proto.String("codecbench"),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("Address"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("province", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					field("city", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					field("street", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					field("zipCode", 4, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				},
			},
			{
				Name: proto.String("User"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					field("name", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					field("age", 3, descriptorpb.FieldDescriptorProto_TYPE_INT32),
					field("gender", 4, descriptorpb.FieldDescriptorProto_TYPE_BOOL),
					field("email", 5, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					field("phone", 6, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					field("score", 7, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
					field("createdAt", 8, descriptorpb.FieldDescriptorProto_TYPE_INT64),
					tags,
					address,
				},
			},
		},
	}
}

func (p *Protobuf) Setup(bench.SetupOptions) (bench.Session, error) {
	fd, err := protodesc.NewFile(userSchema(), new(protoregistry.Files))
	if err != nil {
		return nil, fmt.Errorf("building user descriptor: %w", err)
	}

	s := &protobufSession{
		user:      fd.Messages().ByName("User"),
		address:   fd.Messages().ByName("Address"),
		marshal:   proto.MarshalOptions{Deterministic: true},
		unmarshal: proto.UnmarshalOptions{DiscardUnknown: false},
	}

	uf := s.user.Fields()
	s.id = uf.ByName("id")
	s.name = uf.ByName("name")
	s.age = uf.ByName("age")
	s.gender = uf.ByName("gender")
	s.email = uf.ByName("email")
	s.phone = uf.ByName("phone")
	s.score = uf.ByName("score")
	s.createdAt = uf.ByName("createdAt")
	s.tags = uf.ByName("tags")
	s.addr = uf.ByName("address")

	af := s.address.Fields()
	s.province = af.ByName("province")
	s.city = af.ByName("city")
	s.street = af.ByName("street")
	s.zipCode = af.ByName("zipCode")
	return s, nil
}

func (s *protobufSession) Encode(u *fixture.User) ([]byte, error) {
	m := dynamicpb.NewMessage(s.user)
	m.Set(s.id, protoreflect.ValueOfString(u.ID))
	m.Set(s.name, protoreflect.ValueOfString(u.Name))
	m.Set(s.age, protoreflect.ValueOfInt32(u.Age))
	m.Set(s.gender, protoreflect.ValueOfBool(u.Gender))
	m.Set(s.email, protoreflect.ValueOfString(u.Email))
	m.Set(s.phone, protoreflect.ValueOfString(u.Phone))
	m.Set(s.score, protoreflect.ValueOfFloat64(u.Score))
	m.Set(s.createdAt, protoreflect.ValueOfInt64(u.CreatedAt))

	if len(u.Tags) > 0 {
		tags := m.Mutable(s.tags).List()
		for _, t := range u.Tags {
			tags.Append(protoreflect.ValueOfString(t))
		}
	}

	addr := m.Mutable(s.addr).Message()
	addr.Set(s.province, protoreflect.ValueOfString(u.Address.Province))
	addr.Set(s.city, protoreflect.ValueOfString(u.Address.City))
	addr.Set(s.street, protoreflect.ValueOfString(u.Address.Street))
	addr.Set(s.zipCode, protoreflect.ValueOfInt32(u.Address.ZipCode))

	data, err := s.marshal.Marshal(m)
	if err != nil {
		return nil, encodeErr("protobuf", err)
	}
	return data, nil
}

func (s *protobufSession) Decode(data []byte) (*fixture.User, error) {
	m := dynamicpb.NewMessage(s.user)
	if err := s.unmarshal.Unmarshal(data, m); err != nil {
		return nil, decodeErr("protobuf", err)
	}

	u := &fixture.User{
		ID:        m.Get(s.id).String(),
		Name:      m.Get(s.name).String(),
		Age:       int32(m.Get(s.age).Int()),
		Gender:    m.Get(s.gender).Bool(),
		Email:     m.Get(s.email).String(),
		Phone:     m.Get(s.phone).String(),
		Score:     m.Get(s.score).Float(),
		CreatedAt: m.Get(s.createdAt).Int(),
	}

	if tags := m.Get(s.tags).List(); tags.Len() > 0 {
		u.Tags = make([]string, tags.Len())
		for i := range u.Tags {
			u.Tags[i] = tags.Get(i).String()
		}
	}

	addr := m.Get(s.addr).Message()
	u.Address = fixture.Address{
		Province: addr.Get(s.province).String(),
		City:     addr.Get(s.city).String(),
		Street:   addr.Get(s.street).String(),
		ZipCode:  int32(addr.Get(s.zipCode).Int()),
	}
	return u, nil
}

func (s *protobufSession) Close(context.Context) error {
	return nil
}
