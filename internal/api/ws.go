package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"talent-mirror/internal/logger"
	"talent-mirror/internal/resolver"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type profileMessage struct {
	Type    string                   `json:"type"`
	Profile resolver.ResolvedProfile `json:"profile"`
}

// profileSocket 与 SSE 端点推送相同内容，客户端断开或视图停止时结束。
func (h *handler) profileSocket(w http.ResponseWriter, r *http.Request) {
	if h.Profiles == nil || h.Hub == nil {
		unavailable(w, "profile stream")
		return
	}
	ownerID := r.PathValue("id")
	pv, err := h.Profiles.OpenView(r.Context(), h.Hub, ownerID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer pv.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// 读循环只处理 pong 与关闭帧。
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func() error {
		data, err := json.Marshal(profileMessage{Type: "profile", Profile: pv.Current()})
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteMessage(websocket.TextMessage, data)
	}
	if err := send(); err != nil {
		return
	}

	ping := time.NewTicker(wsPingEvery)
	defer ping.Stop()
	for {
		select {
		case <-readDone:
			return
		case <-r.Context().Done():
			return
		case <-pv.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "view closed"),
				time.Now().Add(wsWriteWait))
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-pv.Updates():
			if err := send(); err != nil {
				h.Log.Debug("profile socket closed", logger.Owner(ownerID), zap.Error(err))
				return
			}
		}
	}
}
