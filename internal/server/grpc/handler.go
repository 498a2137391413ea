package grpc

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophbank/internal/common"
	"github.com/dmitrijs2005/gophbank/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The Bank service is described by hand and carries well-known protobuf
// types, so it needs no generated code.
const (
	BankServiceName      = "gophbank.v1.Bank"
	WhoamiFullMethod     = "/" + BankServiceName + "/Whoami"
	GetAccountFullMethod = "/" + BankServiceName + "/GetAccount"
)

// AccountReader looks accounts up by number. *services.AccountService
// implements it.
type AccountReader interface {
	Get(ctx context.Context, accountNumber string) (*models.Account, error)
}

type bankServer interface {
	Whoami(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetAccount(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

var bankServiceDesc = grpc.ServiceDesc{
	ServiceName: BankServiceName,
	HandlerType: (*bankServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Whoami", Handler: whoamiHandler},
		{MethodName: "GetAccount", Handler: getAccountHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophbank/v1/bank.proto",
}

// Whoami returns the identity behind the access token of the call.
func (s *GRPCServer) Whoami(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	return structpb.NewStruct(map[string]any{
		"user_id":    claims.UserID(),
		"username":   claims.Username,
		"full_name":  claims.FullName,
		"role":       claims.Role,
		"session_id": claims.SessionID(),
	})
}

// GetAccount returns one active account. Customers only see their own
// accounts; anything else is reported as not found.
func (s *GRPCServer) GetAccount(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	if req.GetValue() == "" {
		return nil, fmt.Errorf("%w: account number is required", common.ErrorValidation)
	}

	acc, err := s.accounts.Get(ctx, req.GetValue())
	if err != nil {
		return nil, err
	}
	if claims.Role != common.RoleAdmin && acc.UserID != claims.UserID() {
		return nil, fmt.Errorf("account %s: %w", req.GetValue(), common.ErrorNotFound)
	}

	return structpb.NewStruct(map[string]any{
		"account_number":  acc.AccountNumber,
		"account_name":    acc.AccountName,
		"account_type":    string(acc.AccountType),
		"owner_full_name": acc.OwnerFullName,
		"balance":         acc.Balance.StringFixed(2),
	})
}

func whoamiHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(bankServer).Whoami(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: WhoamiFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(bankServer).Whoami(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getAccountHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(bankServer).GetAccount(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetAccountFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(bankServer).GetAccount(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}
