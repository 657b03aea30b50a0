package signal

import (
	"github.com/dkeye/CineMatch/internal/core"
	"github.com/dkeye/CineMatch/internal/domain"
)

func (ctl *SignalWSController) handlePing(conn *wsSignalConn) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) handleWhoAmI(cid core.ConnID, conn *wsSignalConn) {
	ms, ok := ctl.Orch.Registry.Get(cid)
	if !ok {
		return
	}
	id := ms.Identity()
	resp := struct {
		Type     string          `json:"type"`
		ID       domain.UserID   `json:"id"`
		Name     string          `json:"name"`
		JoinCode domain.JoinCode `json:"joinCode,omitempty"`
	}{
		Type: "whoami",
		ID:   id.ID,
		Name: id.Name,
	}
	if code, _, ok := ctl.Orch.Registry.CodeOf(cid); ok {
		resp.JoinCode = code
	}
	ctl.sendJSON(conn, resp)
}
