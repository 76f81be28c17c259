package boundary

import (
	"errors"
	"sync"
)

// pipeTransport is one end of an in-process message channel. Values cross
// without a codec, so the transfer registry is the only transformation
// applied, the same contract a serializing channel gives.
type pipeTransport struct {
	out chan<- Message
	in  <-chan Message

	closed     chan struct{}
	sharedOnce *sync.Once
}

// Pipe returns two connected in-process transports. Useful for tests and
// for embedding a store host in the same process as its consumer.
// Closing either end shuts down both, like net.Pipe.
func Pipe() (Transport, Transport) {
	ab := make(chan Message, 16)
	ba := make(chan Message, 16)
	closed := make(chan struct{})
	var once sync.Once
	a := &pipeTransport{out: ab, in: ba, closed: closed, sharedOnce: &once}
	b := &pipeTransport{out: ba, in: ab, closed: closed, sharedOnce: &once}
	return a, b
}

func (p *pipeTransport) Send(m Message) error {
	select {
	case <-p.closed:
		return errors.New("boundary: pipe closed")
	default:
	}
	select {
	case p.out <- m:
		return nil
	case <-p.closed:
		return errors.New("boundary: pipe closed")
	}
}

func (p *pipeTransport) Receive() (Message, error) {
	select {
	case m := <-p.in:
		return m, nil
	case <-p.closed:
		return Message{}, errors.New("boundary: pipe closed")
	}
}

func (p *pipeTransport) Close() error {
	p.sharedOnce.Do(func() { close(p.closed) })
	return nil
}
