package rpc

import (
	"bytes"
	"fmt"
	"io"
	"net/rpc"
	"strconv"
	"time"

	"anubis/hw/m68k"
)

type Client struct {
	client *rpc.Client
}

func NewClient(port int) (*Client, error) {
	var (
		client *rpc.Client
		err    error
	)
	const maxretries = 5
	for i := range maxretries {
		if client, err = rpc.DialHTTP("tcp", "localhost:"+strconv.Itoa(port)); err == nil {
			break
		}
		modRPC.WarnZ("dial tcp failed").Error("err", err).Int("retry", i).End()
		time.Sleep(250 * time.Millisecond)
	}

	if client == nil {
		return nil, fmt.Errorf("dial failed max retries: %v", err)
	}

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	modRPC.DebugZ("closing rpc client").End()
	return c.client.Close()
}

func (c *Client) Reset() error             { return call(c.client, "Reset", nil) }
func (c *Client) Run(n int) error          { return call(c.client, "Run", n) }
func (c *Client) SetIPL(level uint8) error { return call(c.client, "SetIPL", level) }
func (c *Client) Cycle() (int64, error)    { return request[int64](c.client, "Cycle", nil) }
func (c *Client) IsReady() (bool, error)   { return request[bool](c.client, "IsReady", nil) }

func (c *Client) Read(adr uint32, sel uint8, fc uint8) (uint32, error) {
	return request[uint32](c.client, "Read", ReadArgs{Adr: adr, Sel: sel, FC: fc})
}

func (c *Client) Write(adr uint32, sel uint8, val uint32, fc uint8) error {
	return call(c.client, "Write", WriteArgs{Adr: adr, Sel: sel, Data: val, FC: fc})
}

func (c *Client) IACK(level uint8) (uint8, error) {
	return request[uint8](c.client, "IACK", level)
}

func (c *Client) RequestBus(hold int, ops ...m68k.Access) ([]uint16, error) {
	return request[[]uint16](c.client, "RequestBus", RequestBusArgs{Hold: hold, Accesses: ops})
}

func (c *Client) Peek(addr uint32) (uint16, error) {
	return request[uint16](c.client, "Peek", addr)
}

func (c *Client) Poke(addr uint32, val uint16) error {
	return call(c.client, "Poke", PokeArgs{Addr: addr, Data: val})
}

func (c *Client) Phases() ([]m68k.Phase, error) {
	return request[[]m68k.Phase](c.client, "Phases", nil)
}

func (c *Client) SaveSnapshot(w io.Writer) error {
	state, err := request[[]byte](c.client, "SaveSnapshot", nil)
	if err != nil {
		return err
	}
	_, err = w.Write(state)
	return err
}

func (c *Client) LoadSnapshot(r io.Reader) error {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return err
	}
	return call(c.client, "LoadSnapshot", buf.Bytes())
}

func call(client *rpc.Client, method string, args any) error {
	_, err := request[struct{}](client, method, args)
	return err
}

func request[T any](client *rpc.Client, method string, args any) (T, error) {
	if args == nil {
		args = &struct{}{}
	}
	var reply T
	if err := client.Call(service+"."+method, args, &reply); err != nil {
		modRPC.DebugZ("rpc call failed").String("method", method).Error("err", err).End()
		return reply, err
	}
	return reply, nil
}
