package rtc

import (
	"encoding/json"
	"fmt"

	"github.com/ZEGOCLOUD/zego_server_assistant/token/go/src/token04"
	"github.com/google/uuid"
)

// roomPayload is the ZEGOCLOUD token04 room payload.
type roomPayload struct {
	RoomID       string      `json:"RoomId"`
	Privilege    map[int]int `json:"Privilege"`
	StreamIDList []string    `json:"StreamIdList,omitempty"`
}

// Zego implements Provider with ZEGOCLOUD token04 tokens.
type Zego struct {
	appID        uint32
	serverSecret string // 32 characters, from the ZEGOCLOUD console
	expireSec    int64
}

// NewZego creates a ZEGOCLOUD token provider.
func NewZego(appID uint32, serverSecret string, expireSec int64) (*Zego, error) {
	if appID == 0 || serverSecret == "" {
		return nil, fmt.Errorf("rtc: app id and server secret required")
	}
	if len(serverSecret) != 32 {
		return nil, fmt.Errorf("rtc: server secret must be 32 characters")
	}
	if expireSec <= 0 {
		expireSec = 3600
	}
	return &Zego{appID: appID, serverSecret: serverSecret, expireSec: expireSec}, nil
}

// Token mints a channel token. Publishing is enabled only for the seller.
func (z *Zego) Token(channel string, userID uuid.UUID, canPublish bool) (string, error) {
	privilege := map[int]int{
		token04.PrivilegeKeyLogin:   token04.PrivilegeEnable,
		token04.PrivilegeKeyPublish: token04.PrivilegeDisable,
	}
	if canPublish {
		privilege[token04.PrivilegeKeyPublish] = token04.PrivilegeEnable
	}
	payload := roomPayload{RoomID: channel, Privilege: privilege}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("rtc: marshal payload: %w", err)
	}
	return token04.GenerateToken04(z.appID, userID.String(), z.serverSecret, z.expireSec, string(payloadJSON))
}
