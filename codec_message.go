package typedcache

import (
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// maxIdleMessageInstances bounds the per-type object pool a MessageCodec
// keeps for deserialized instances, mirroring the "100 idle instances per
// type" cap in the design.
const maxIdleMessageInstances = 100

// MessageCodec is a ValueCodec for protobuf-generated message types. It
// rents scratch space from a shared bytebufferpool.Pool for the marshal
// step and returns deserialized instances from a sync.Pool owned by this
// codec instance, bounded at maxIdleMessageInstances; separate codec
// instances for the same message type do not share a pool. On ReturnToPool it calls the message's own
// generated Reset() — protobuf already supplies exactly the reset hook the
// reflection-probing approach would otherwise have to fake, so there is no
// reflection here.
type MessageCodec[T proto.Message] struct {
	newFn func() T
	pool  sync.Pool
	idle  atomic.Int32
}

// NewMessageCodec returns a MessageCodec for T. newFn must construct a
// zero-value instance of the concrete message type, e.g. func() *pb.User {
// return &pb.User{} }.
func NewMessageCodec[T proto.Message](newFn func() T) *MessageCodec[T] {
	return &MessageCodec[T]{newFn: newFn}
}

func (c *MessageCodec[T]) Serialize(v T) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	out, err := proto.MarshalOptions{}.MarshalAppend(buf.B[:0], v)
	if err != nil {
		return nil, err
	}
	buf.B = out

	result := make([]byte, len(out))
	copy(result, out)
	return result, nil
}

func (c *MessageCodec[T]) Deserialize(data []byte) (T, error) {
	if data == nil {
		var zero T
		return zero, &ValueRequiredError{}
	}

	inst := c.acquire()
	if len(data) == 0 {
		return inst, nil
	}
	if err := proto.Unmarshal(data, inst); err != nil {
		return inst, err
	}
	return inst, nil
}

func (c *MessageCodec[T]) ToDisplayString(v T) string {
	return protojson.Format(v)
}

func (c *MessageCodec[T]) SupportsPooling() bool { return true }

// ReturnToPool clears v via its generated Reset() and, while the pool is
// under its cap, makes it available for a future Deserialize. Beyond the
// cap it is simply dropped for the garbage collector.
func (c *MessageCodec[T]) ReturnToPool(v T) {
	v.Reset()
	if c.idle.Load() >= maxIdleMessageInstances {
		return
	}
	c.pool.Put(v)
	c.idle.Add(1)
}

func (c *MessageCodec[T]) acquire() T {
	if x := c.pool.Get(); x != nil {
		c.idle.Add(-1)
		return x.(T)
	}
	return c.newFn()
}
