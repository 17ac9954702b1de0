package server

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "loopviz.v1.EngineService"

const protoFile = "loopviz.proto"

//go:embed loopviz.proto
var protoSource string

var (
	schemaOnce sync.Once
	schemaDesc *desc.ServiceDescriptor
	schemaErr  error
)

// service parses the embedded proto once.
func service() (*desc.ServiceDescriptor, error) {
	schemaOnce.Do(func() {
		parser := protoparse.Parser{
			Accessor: protoparse.FileContentsFromMap(map[string]string{protoFile: protoSource}),
		}
		fds, err := parser.ParseFiles(protoFile)
		if err != nil {
			schemaErr = fmt.Errorf("parsing %s: %w", protoFile, err)
			return
		}
		schemaDesc = fds[0].FindService(ServiceName)
		if schemaDesc == nil {
			schemaErr = fmt.Errorf("service %s not found in %s", ServiceName, protoFile)
		}
	})
	return schemaDesc, schemaErr
}

// DescriptorSet returns the schema as a serialized FileDescriptorSet, the
// format grpcurl accepts with -protoset.
func DescriptorSet() ([]byte, error) {
	sd, err := service()
	if err != nil {
		return nil, err
	}
	set := &descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{sd.GetFile().AsFileDescriptorProto()},
	}
	return proto.Marshal(set)
}

func method(name string) (*desc.MethodDescriptor, error) {
	sd, err := service()
	if err != nil {
		return nil, err
	}
	md := sd.FindMethodByName(name)
	if md == nil {
		return nil, fmt.Errorf("method %s not found on %s", name, ServiceName)
	}
	return md, nil
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func stringField(msg *dynamic.Message, name string) string {
	v, err := msg.TryGetFieldByName(name)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
