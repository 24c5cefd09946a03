package mqtt

import "testing"

func pushN(rb *ringBuffer, from, to int) {
	for i := from; i < to; i++ {
		rb.push(bufferedMsg{topic: TopicPumps, payload: []byte{byte(i)}})
	}
}

func payloadBytes(msgs []bufferedMsg) []byte {
	out := make([]byte, len(msgs))
	for i, m := range msgs {
		out[i] = m.payload[0]
	}
	return out
}

func TestRingBufferDrain(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		pushed   int
		want     []byte
	}{
		{"empty", 4, 0, nil},
		{"partial", 4, 3, []byte{0, 1, 2}},
		{"full", 4, 4, []byte{0, 1, 2, 3}},
		{"overflow keeps newest", 4, 7, []byte{3, 4, 5, 6}},
		{"zero capacity holds one", 0, 3, []byte{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := newRingBuffer(tt.capacity)
			pushN(rb, 0, tt.pushed)
			got := rb.drainAll()
			if tt.want == nil {
				if got != nil {
					t.Fatalf("got %d messages, want nil", len(got))
				}
				return
			}
			if string(payloadBytes(got)) != string(tt.want) {
				t.Errorf("drained %v, want %v", payloadBytes(got), tt.want)
			}
			if rb.len() != 0 {
				t.Errorf("len after drain = %d, want 0", rb.len())
			}
		})
	}
}

func TestRingBufferReuseAfterDrain(t *testing.T) {
	rb := newRingBuffer(3)
	pushN(rb, 0, 5)
	if rb.dropped != 2 {
		t.Errorf("dropped = %d, want 2", rb.dropped)
	}
	rb.drainAll()
	if rb.dropped != 0 {
		t.Errorf("dropped after drain = %d, want 0", rb.dropped)
	}

	pushN(rb, 10, 12)
	if rb.len() != 2 {
		t.Fatalf("len = %d, want 2", rb.len())
	}
	if got := payloadBytes(rb.drainAll()); string(got) != string([]byte{10, 11}) {
		t.Errorf("second cycle drained %v, want [10 11]", got)
	}
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(2)
	rb.push(bufferedMsg{topic: TopicSystem, payload: []byte(`{"a":1}`), qos: 1, retained: true})

	got := rb.drainAll()
	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1", len(got))
	}
	m := got[0]
	if m.topic != TopicSystem || string(m.payload) != `{"a":1}` || m.qos != 1 || !m.retained {
		t.Errorf("message = %+v", m)
	}
}
