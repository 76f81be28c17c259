package jsonrpc

import (
	"errors"
	"sync"
)

type pipeChannel struct {
	out chan<- *Message
	in  <-chan *Message

	closed     chan struct{}
	sharedOnce *sync.Once
}

// PipeChannel returns two connected in-process channels, one per side.
// Closing either end shuts down both.
func PipeChannel() (Channel, Channel) {
	ab := make(chan *Message, 16)
	ba := make(chan *Message, 16)
	closed := make(chan struct{})
	var once sync.Once
	a := &pipeChannel{out: ab, in: ba, closed: closed, sharedOnce: &once}
	b := &pipeChannel{out: ba, in: ab, closed: closed, sharedOnce: &once}
	return a, b
}

func (p *pipeChannel) Send(m *Message) error {
	select {
	case p.out <- m:
		return nil
	case <-p.closed:
		return errors.New("jsonrpc: pipe closed")
	}
}

func (p *pipeChannel) Receive() (*Message, error) {
	select {
	case m := <-p.in:
		return m, nil
	case <-p.closed:
		return nil, errors.New("jsonrpc: pipe closed")
	}
}

func (p *pipeChannel) Close() error {
	p.sharedOnce.Do(func() { close(p.closed) })
	return nil
}
