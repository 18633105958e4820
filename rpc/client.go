package rpc

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/becomeliminal/nim-memory/api"
	"github.com/becomeliminal/nim-memory/memory"
)

// Client is a memory.Store served by a remote process.
type Client struct {
	conn   grpc.ClientConnInterface
	closer io.Closer
}

var _ memory.Store = (*Client)(nil)

// NewClient wraps an existing connection. Close does not close conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Dial connects to addr without transport security.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("rpc: dial %s: %w", addr, err)
	}
	return &Client{conn: conn, closer: conn}, nil
}

func (c *Client) Store(ctx context.Context, content string, opts ...memory.Option) (memory.Receipt, error) {
	if err := memory.ValidateContent(content); err != nil {
		return memory.Receipt{}, err
	}
	o := memory.Apply(0, opts...)

	var resp api.AddResponse
	err := c.invoke(ctx, "Store", api.AddRequest{Content: content, Tags: o.Tags, Metadata: o.Metadata}, &resp)
	if err != nil {
		return memory.Receipt{}, err
	}
	return memory.Receipt{ID: resp.ID, Message: resp.Message}, nil
}

func (c *Client) Search(ctx context.Context, query string, opts ...memory.Option) ([]memory.Result, error) {
	if err := memory.ValidateQuery(query); err != nil {
		return nil, err
	}
	o := memory.Apply(memory.DefaultSearchLimit, opts...)

	var resp api.SearchResponse
	if err := c.invoke(ctx, "Search", api.SearchRequest{Query: query, Tags: o.Tags, Limit: &o.Limit}, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		resp.Results = []memory.Result{}
	}
	return resp.Results, nil
}

func (c *Client) List(ctx context.Context, opts ...memory.Option) ([]memory.Memory, error) {
	o := memory.Apply(memory.DefaultListLimit, opts...)

	var resp api.ListResponse
	if err := c.invoke(ctx, "List", api.ListRequest{Tags: o.Tags, Limit: &o.Limit}, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		resp.Results = []memory.Memory{}
	}
	return resp.Results, nil
}

// Delete reports false on any failure, including transport errors.
func (c *Client) Delete(ctx context.Context, id string) bool {
	var resp api.DeleteResponse
	if err := c.invoke(ctx, "Delete", api.DeleteRequest{ID: id}, &resp); err != nil {
		return false
	}
	return resp.Deleted
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	in, err := toStruct(req)
	if err != nil {
		return memory.Invalidf("encode %s request: %v", method, err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return errorFor(method, err)
	}
	if err := fromStruct(out, resp); err != nil {
		return memory.BackendError(method, err)
	}
	return nil
}

// errorFor maps a gRPC status back to the memory error kinds. Transport
// failures and remote configuration problems both surface as Unavailable
// and cannot be told apart, so only InvalidArgument keeps its kind.
func errorFor(method string, err error) error {
	st := status.Convert(err)
	if st.Code() == codes.InvalidArgument {
		return memory.Invalidf("%s", st.Message())
	}
	return memory.BackendError(method, fmt.Errorf("%s: %s", st.Code(), st.Message()))
}
