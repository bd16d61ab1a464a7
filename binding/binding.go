// Package binding builds gRPC client and server bindings at runtime from a
// parsed schema, the Go counterpart of the dynamic JavaScript module: no
// generated code, every message is a dynamicpb.Message.
package binding

import (
	"context"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/teranos/protobridge/errors"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// MessageFactory constructs an empty message
type MessageFactory func() *dynamicpb.Message

// Binding exposes every message and service declared in one schema file
type Binding struct {
	File protoreflect.FileDescriptor
	// Messages maps full names (e.g. "helloworld.HelloRequest") to constructors
	Messages map[string]MessageFactory
	// Services maps full names (e.g. "helloworld.Greeter") to services
	Services map[string]*Service
}

// Bind builds the binding for fd. Nested messages are included; map entry
// messages are not.
func Bind(fd protoreflect.FileDescriptor) *Binding {
	b := &Binding{
		File:     fd,
		Messages: make(map[string]MessageFactory),
		Services: make(map[string]*Service),
	}

	var walk func(msgs protoreflect.MessageDescriptors)
	walk = func(msgs protoreflect.MessageDescriptors) {
		for i := 0; i < msgs.Len(); i++ {
			md := msgs.Get(i)
			if md.IsMapEntry() {
				continue
			}
			b.Messages[string(md.FullName())] = func() *dynamicpb.Message {
				return dynamicpb.NewMessage(md)
			}
			walk(md.Messages())
		}
	}
	walk(fd.Messages())

	services := fd.Services()
	for i := 0; i < services.Len(); i++ {
		svc := newService(services.Get(i))
		b.Services[svc.Name()] = svc
	}
	return b
}

// New constructs the named message
func (b *Binding) New(fullName string) (*dynamicpb.Message, error) {
	factory, ok := b.Messages[fullName]
	if !ok {
		return nil, errors.Newf("schema %s declares no message %s", b.File.Path(), fullName)
	}
	return factory(), nil
}

// Service is one gRPC service of a binding
type Service struct {
	desc    protoreflect.ServiceDescriptor
	methods map[string]protoreflect.MethodDescriptor
}

func newService(sd protoreflect.ServiceDescriptor) *Service {
	s := &Service{desc: sd, methods: make(map[string]protoreflect.MethodDescriptor)}
	methods := sd.Methods()
	// Exact names are registered last so they win over a lowerCamel alias
	// of another method (Foo and foo in one service).
	for i := 0; i < methods.Len(); i++ {
		md := methods.Get(i)
		s.methods[lowerFirst(string(md.Name()))] = md
	}
	for i := 0; i < methods.Len(); i++ {
		md := methods.Get(i)
		s.methods[string(md.Name())] = md
	}
	return s
}

// Name returns the service's full name
func (s *Service) Name() string {
	return string(s.desc.FullName())
}

// Descriptor returns the service descriptor
func (s *Service) Descriptor() protoreflect.ServiceDescriptor {
	return s.desc
}

// Method finds a method by its schema name ("SayHello") or client name ("sayHello")
func (s *Service) Method(name string) (protoreflect.MethodDescriptor, bool) {
	md, ok := s.methods[name]
	return md, ok
}

// MethodNames returns client-style (lowerCamelCase) method names, sorted
func (s *Service) MethodNames() []string {
	names := make([]string, 0, s.desc.Methods().Len())
	for i := 0; i < s.desc.Methods().Len(); i++ {
		names = append(names, lowerFirst(string(s.desc.Methods().Get(i).Name())))
	}
	sort.Strings(names)
	return names
}

// FullMethod returns the gRPC method path, "/pkg.Service/Method"
func FullMethod(md protoreflect.MethodDescriptor) string {
	return "/" + string(md.Parent().FullName()) + "/" + string(md.Name())
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

// Client calls a service over any gRPC connection
type Client struct {
	svc *Service
	cc  grpc.ClientConnInterface
}

// NewClient returns a client for the service bound to cc
func (s *Service) NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{svc: s, cc: cc}
}

// Invoke calls a unary method. req must be a message of the method's input type.
func (c *Client) Invoke(ctx context.Context, method string, req proto.Message, opts ...grpc.CallOption) (*dynamicpb.Message, error) {
	md, ok := c.svc.Method(method)
	if !ok {
		return nil, errors.Newf("service %s has no method %s", c.svc.Name(), method)
	}
	if md.IsStreamingClient() || md.IsStreamingServer() {
		return nil, errors.Newf("method %s is streaming; only unary calls are supported", FullMethod(md))
	}
	if got := req.ProtoReflect().Descriptor().FullName(); got != md.Input().FullName() {
		return nil, errors.Newf("method %s takes %s, got %s", FullMethod(md), md.Input().FullName(), got)
	}

	resp := dynamicpb.NewMessage(md.Output())
	if err := c.cc.Invoke(ctx, FullMethod(md), req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

// UnaryHandler serves every unary method of a service
type UnaryHandler func(ctx context.Context, method protoreflect.MethodDescriptor, req *dynamicpb.Message) (proto.Message, error)

// ServiceDesc builds a grpc.ServiceDesc whose unary methods all dispatch to h.
// Streaming methods are left out.
func (s *Service) ServiceDesc(h UnaryHandler) *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: s.Name(),
		HandlerType: (*interface{})(nil),
		Metadata:    s.desc.ParentFile().Path(),
	}
	for i := 0; i < s.desc.Methods().Len(); i++ {
		md := s.desc.Methods().Get(i)
		if md.IsStreamingClient() || md.IsStreamingServer() {
			continue
		}
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: string(md.Name()),
			Handler:    unaryHandler(md, h),
		})
	}
	return desc
}

func unaryHandler(md protoreflect.MethodDescriptor, h UnaryHandler) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		req := dynamicpb.NewMessage(md.Input())
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return h(ctx, md, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(md)}
		return interceptor(ctx, req, info, func(ctx context.Context, r interface{}) (interface{}, error) {
			return h(ctx, md, r.(*dynamicpb.Message))
		})
	}
}

// Register registers the service on reg with h serving its unary methods
func (s *Service) Register(reg grpc.ServiceRegistrar, h UnaryHandler) {
	reg.RegisterService(s.ServiceDesc(h), h)
}

// String lists the service and its methods
func (s *Service) String() string {
	return s.Name() + "{" + strings.Join(s.MethodNames(), ", ") + "}"
}
