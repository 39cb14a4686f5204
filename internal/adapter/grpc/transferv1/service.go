// Package transferv1 registers the transferflow.v1.TransferService gRPC service.
//
// Requests and responses are google.protobuf.Struct messages; the field names are listed with each
// method below. Amounts travel as decimal strings.
package transferv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the service
const ServiceName = "transferflow.v1.TransferService"

const (
	// SubmitTransferMethod takes source_account, target_account, amount, reference_id and an optional
	// session_id, and returns the outcome fields once the saga is terminal
	SubmitTransferMethod = "/" + ServiceName + "/SubmitTransfer"
	// GetTransferMethod takes session_id and returns the stored transfer record
	GetTransferMethod = "/" + ServiceName + "/GetTransfer"
	// GetSessionMethod takes session_id and returns the step flags of the session
	GetSessionMethod = "/" + ServiceName + "/GetSession"
)

// TransferServiceServer is the server API for the TransferService service
type TransferServiceServer interface {
	SubmitTransfer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTransfer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterTransferServiceServer registers srv on s
func RegisterTransferServiceServer(s grpc.ServiceRegistrar, srv TransferServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryMethod func(TransferServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TransferServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(TransferServiceServer), ctx, req.(*structpb.Struct))
		})
	}
}

// ServiceDesc is the grpc.ServiceDesc for the TransferService service
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TransferServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SubmitTransfer",
			Handler:    handler(SubmitTransferMethod, TransferServiceServer.SubmitTransfer),
		},
		{
			MethodName: "GetTransfer",
			Handler:    handler(GetTransferMethod, TransferServiceServer.GetTransfer),
		},
		{
			MethodName: "GetSession",
			Handler:    handler(GetSessionMethod, TransferServiceServer.GetSession),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "transferflow/v1/transfer.proto",
}

// TransferServiceClient is the client API for the TransferService service
type TransferServiceClient interface {
	SubmitTransfer(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetTransfer(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type transferServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewTransferServiceClient creates a client bound to cc
func NewTransferServiceClient(cc grpc.ClientConnInterface) TransferServiceClient {
	return &transferServiceClient{cc: cc}
}

func (c *transferServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *transferServiceClient) SubmitTransfer(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, SubmitTransferMethod, in, opts)
}

func (c *transferServiceClient) GetTransfer(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, GetTransferMethod, in, opts)
}

func (c *transferServiceClient) GetSession(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, GetSessionMethod, in, opts)
}
