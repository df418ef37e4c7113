package server

import (
	"encoding/json"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"

	"bombarena/logging"
)

// Routes 管理与监控接口，外加 /ws 接入
func (srv *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.HandleWS)
	mux.HandleFunc("/admin/config", srv.HandleAdminConfig)
	mux.HandleFunc("/metrics", srv.HandleMetrics)
	mux.HandleFunc("/snapshot", srv.HandleSnapshot)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// HandleAdminConfig 只读：配置在启动时确定，运行中不可修改
// GET /admin/config
func (srv *Server) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	g := srv.cfg.Game
	payload := map[string]any{
		"addr":         srv.cfg.Addr,
		"mapPath":      srv.cfg.MapPath,
		"pollInterval": srv.cfg.PollInterval.String(),
		"sendQueue":    srv.cfg.SendQueue,
		"maxSessions":  srv.cfg.MaxSessions,
		"game": map[string]any{
			"tickRate":  g.TickRate,
			"bombTimer": g.BombTimer.String(),
			"fireTimer": g.FireTimer.String(),
			"bombCount": g.BombCount,
			"bombRange": g.BombRange,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// HandleMetrics 输出运行指标
// GET /metrics
func (srv *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"metrics": srv.metrics.Snapshot(),
	}
	if m := srv.current.Load(); m != nil {
		payload["match"] = m.ID
		payload["tick"] = m.Tick()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// HandleSnapshot 以 msgpack 输出当前比赛状态，供观战或调试工具读取
// GET /snapshot
func (srv *Server) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	b, err := msgpack.Marshal(srv.Snapshot())
	if err != nil {
		logging.Log.Errorw("snapshot encode", "err", err)
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/msgpack")
	_, _ = w.Write(b)
}
