package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{
		Content: []ContentBlock{
			{Type: "text", Text: "1HGCM"},
			{Type: "tool_use"},
			{Type: "text", Text: "82633A004352"},
		},
	}
	assert.Equal(t, "1HGCM82633A004352", resp.Text())
}

func TestMessageResponse_Text_Empty(t *testing.T) {
	resp := &MessageResponse{}
	assert.Equal(t, "", resp.Text())
}

func TestVisionMessage_BlockOrder(t *testing.T) {
	msg := VisionMessage("read the odometer", "image/jpeg", []byte{0xff, 0xd8})

	assert.Equal(t, "user", msg.Role)
	assert.Len(t, msg.Content, 2)
	assert.Equal(t, "image", msg.Content[0].Type)
	assert.Equal(t, "image/jpeg", msg.Content[0].MediaType)
	assert.Equal(t, "text", msg.Content[1].Type)
	assert.Equal(t, "read the odometer", msg.Content[1].Text)
}

func TestToSDKMessages_RoleMapping(t *testing.T) {
	msgs := toSDKMessages([]Message{
		TextMessage("hello"),
		{Role: "assistant", Content: []ContentBlock{{Type: "text", Text: "hi"}}},
	})
	assert.Len(t, msgs, 2)
}
