package remote

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"mcheck/driver"
	"mcheck/transition"
)

// A driver running in another process. Implements driver.Driver.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// Connect to the driver service at target
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "remote: dial %s", target)
	}
	return &Client{cc: conn, conn: conn}, nil
}

// Use an existing connection. Close does not close it.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) InitialActors(ctx context.Context) ([]driver.Actor, error) {
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, fullMethod("InitialActors"), &emptypb.Empty{}, out); err != nil {
		return nil, errors.Wrap(err, "remote: initial actors")
	}
	return decodeActors(out.GetFields()["actors"]), nil
}

func (c *Client) Execute(ctx context.Context, aid transition.ActorID, timesConsidered int) (driver.ExecResult, error) {
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, fullMethod("Execute"), encodeExecRequest(aid, timesConsidered), out); err != nil {
		return driver.ExecResult{}, errors.Wrapf(err, "remote: execute actor %d", aid)
	}
	return decodeExecResult(out)
}

func (c *Client) Snapshot(ctx context.Context) (driver.Snapshot, error) {
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, fullMethod("Snapshot"), &emptypb.Empty{}, out); err != nil {
		return nil, errors.Wrap(err, "remote: snapshot")
	}
	content := out.GetFields()["content"].GetStructValue()
	if content == nil {
		return nil, errors.New("remote: snapshot without content")
	}
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(content)
	if err != nil {
		return nil, errors.Wrap(err, "remote: encode snapshot")
	}
	return &Snapshot{
		content: content,
		data:    data,
		actors:  int(out.GetFields()["actor_count"].GetNumberValue()),
	}, nil
}

func (c *Client) Restore(ctx context.Context, snap driver.Snapshot) error {
	s, ok := snap.(*Snapshot)
	if !ok {
		return errors.Errorf("remote: can not restore a snapshot of type %T", snap)
	}
	req := &structpb.Struct{Fields: map[string]*structpb.Value{"content": structpb.NewStructValue(s.content)}}
	if err := c.cc.Invoke(ctx, fullMethod("Restore"), req, &emptypb.Empty{}); err != nil {
		return errors.Wrap(err, "remote: restore")
	}
	return nil
}

// A snapshot held by the remote process, kept as its wire content
type Snapshot struct {
	content *structpb.Struct
	data    []byte
	actors  int
}

func (s *Snapshot) ActorCount() int {
	return s.actors
}

func (s *Snapshot) HeapBytesUsed() int64 {
	return int64(len(s.data))
}

func (s *Snapshot) Equal(other driver.Snapshot) bool {
	o, ok := other.(*Snapshot)
	if !ok {
		return false
	}
	return s.actors == o.actors && bytes.Equal(s.data, o.data)
}
