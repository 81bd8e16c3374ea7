package grpcledger

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/xellDart/ERC721-IP/model"
	"github.com/xellDart/ERC721-IP/store"
)

// Client implements store.Store against a remote Ledger service.
type Client struct {
	cc     *grpc.ClientConn
	client LedgerClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

var _ store.Store = (*Client)(nil)

type DialOptions struct {
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

// Dial connects to target without transport security. The connection is
// established lazily on the first RPC.
func Dial(target string, opts DialOptions, extra ...grpc.DialOption) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}
	dialOpts = append(dialOpts, extra...)

	cc, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewLedgerClient(cc), Timeout: opts.Timeout}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) InsertCertificate(ctx context.Context, cert *model.Certificate) error {
	msg, err := encodeCertificate(cert)
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	_, err = c.client.InsertCertificate(ctx, msg)
	return mapRPC(err)
}

func (c *Client) Certificate(ctx context.Context, digest model.Digest) (*model.Certificate, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	reply, err := c.client.Certificate(ctx, wrapperspb.String(digest.Hex()))
	if err != nil {
		return nil, mapRPC(err)
	}
	return decodeCertificate(reply)
}

func (c *Client) OwnerOf(ctx context.Context, digest model.Digest) (model.Address, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	reply, err := c.client.OwnerOf(ctx, wrapperspb.String(digest.Hex()))
	if err != nil {
		return model.Address{}, mapRPC(err)
	}
	return model.ParseAddress(reply.GetValue())
}

func (c *Client) BalanceOf(ctx context.Context, owner model.Address) (uint64, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	reply, err := c.client.BalanceOf(ctx, wrapperspb.String(owner.Hex()))
	if err != nil {
		return 0, mapRPC(err)
	}
	return reply.GetValue(), nil
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}
