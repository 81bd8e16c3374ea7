package grpcledger

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xellDart/ERC721-IP/model"
	"github.com/xellDart/ERC721-IP/store"
)

var errBadCertificate = errors.New("grpcledger: malformed certificate message")

// mapErr converts a store error into a status for the wire.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case store.IsDuplicate(err):
		return status.Error(codes.AlreadyExists, err.Error())
	case store.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, model.ErrInvalidAddress), errors.Is(err, model.ErrInvalidDigest), errors.Is(err, errBadCertificate):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.FromContextError(err).Err()
	}
}

// mapRPC converts a status received from the server back into store errors.
func mapRPC(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.AlreadyExists:
		return store.ErrDuplicate
	case codes.NotFound:
		return store.ErrNotFound
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", errBadCertificate, st.Message())
	default:
		return err
	}
}

func encodeCertificate(c *model.Certificate) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"digest":    c.Digest.Hex(),
		"owner":     c.Owner.Hex(),
		"schema":    c.Schema,
		"minted_at": c.MintedAt.UTC().Format(time.RFC3339Nano),
	})
}

func decodeCertificate(s *structpb.Struct) (*model.Certificate, error) {
	f := s.GetFields()
	str := func(k string) (string, error) {
		v, ok := f[k]
		if !ok {
			return "", fmt.Errorf("%w: missing %s", errBadCertificate, k)
		}
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return "", fmt.Errorf("%w: %s is not a string", errBadCertificate, k)
		}
		return sv.StringValue, nil
	}

	var (
		c   model.Certificate
		raw string
		err error
	)
	if raw, err = str("digest"); err != nil {
		return nil, err
	}
	if c.Digest, err = model.ParseDigest(raw); err != nil {
		return nil, err
	}
	if raw, err = str("owner"); err != nil {
		return nil, err
	}
	if c.Owner, err = model.ParseAddress(raw); err != nil {
		return nil, err
	}
	if c.Schema, err = str("schema"); err != nil {
		return nil, err
	}
	if raw, err = str("minted_at"); err != nil {
		return nil, err
	}
	if c.MintedAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
		return nil, fmt.Errorf("%w: minted_at: %v", errBadCertificate, err)
	}
	return &c, nil
}
