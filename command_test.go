package ucsi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/usbctools/go-ucsi/pd"
)

func TestCommandEncode(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want uint64
	}{
		{
			name: "get capability",
			cmd:  Command{Op: OpGetCapability},
			want: 0x06,
		},
		{
			name: "get connector capability connector 0",
			cmd:  Command{Op: OpGetConnectorCapability, Connector: 0},
			want: 0x10007,
		},
		{
			name: "get connector capability connector 2",
			cmd:  Command{Op: OpGetConnectorCapability, Connector: 2},
			want: 0x30007,
		},
		{
			name: "get cable property",
			cmd:  Command{Op: OpGetCableProperty, Connector: 1},
			want: 0x20011,
		},
		{
			name: "get alternate modes",
			cmd:  Command{Op: OpGetAlternateModes, Recipient: RecipientSOP, Connector: 0, Offset: 2},
			want: 0x0c | uint64(1)<<16 | uint64(1)<<24 | uint64(2)<<32,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cmd.Encode())
		})
	}
}

func TestCommandEncodeGetPDOs(t *testing.T) {
	cmd := Command{
		Op:         OpGetPDOs,
		Connector:  0,
		Partner:    true,
		Offset:     1,
		PDOType:    PDOSource,
		SourceCaps: AdvertisedCapabilities,
	}
	want := uint64(0x10) | 1<<16 | 1<<23 | 1<<24 | 1<<34 | 1<<35
	assert.Equal(t, want, cmd.Encode())
}

func TestCommandEncodeGetPDMessage(t *testing.T) {
	cmd := Command{
		Op:           OpGetPDMessage,
		Connector:    0,
		MsgRecipient: pd.RecipientSOP,
		ResponseType: pd.ResponseDiscoverIdentity,
	}
	want := uint64(0x15) | 1<<16 | 1<<23 | 4<<42
	assert.Equal(t, want, cmd.Encode())
}
