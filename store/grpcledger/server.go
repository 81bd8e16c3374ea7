package grpcledger

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/xellDart/ERC721-IP/model"
	"github.com/xellDart/ERC721-IP/store"
)

// Server exposes a store.Store over the Ledger gRPC service. The wrapped
// store keeps its own atomicity guarantee; the server adds none.
type Server struct {
	UnimplementedLedgerServer
	Store store.Store
}

func (s *Server) InsertCertificate(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	c, err := decodeCertificate(in)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := s.Store.InsertCertificate(ctx, c); err != nil {
		return nil, mapErr(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) Certificate(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	d, err := model.ParseDigest(in.GetValue())
	if err != nil {
		return nil, mapErr(err)
	}
	c, err := s.Store.Certificate(ctx, d)
	if err != nil {
		return nil, mapErr(err)
	}
	out, err := encodeCertificate(c)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) OwnerOf(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	d, err := model.ParseDigest(in.GetValue())
	if err != nil {
		return nil, mapErr(err)
	}
	owner, err := s.Store.OwnerOf(ctx, d)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.String(owner.Hex()), nil
}

func (s *Server) BalanceOf(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error) {
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	a, err := model.ParseAddress(in.GetValue())
	if err != nil {
		return nil, mapErr(err)
	}
	n, err := s.Store.BalanceOf(ctx, a)
	if err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.UInt64(n), nil
}
