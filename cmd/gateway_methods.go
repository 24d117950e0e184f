package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bashclaw/bashclaw/internal/agent"
	"github.com/bashclaw/bashclaw/internal/cron"
	"github.com/bashclaw/bashclaw/internal/gateway"
	"github.com/bashclaw/bashclaw/internal/scheduler"
	"github.com/bashclaw/bashclaw/internal/sessions"
	"github.com/bashclaw/bashclaw/internal/statepath"
	"github.com/bashclaw/bashclaw/internal/store"
	"github.com/bashclaw/bashclaw/internal/tools"
	"github.com/bashclaw/bashclaw/pkg/protocol"
)

// methodDeps bundles everything registerAllMethods' handlers close over.
// Built once at startup from the same components wired into consumeInboundMessages.
type methodDeps struct {
	srv         *gateway.Server
	sched       *scheduler.Scheduler
	cronStore   store.CronStore
	stateRoot   statepath.Root
	approvalMgr *tools.ExecApprovalManager
}

// registerAllMethods wires every supported RPC method onto srv's router.
// Methods with no clean mapping onto this repo's standalone stores
// (device.pair.*, sessions.patch, the multi-tenant agents/teams/delegations
// families) are intentionally not registered here — see DESIGN.md.
func registerAllMethods(srv *gateway.Server, sched *scheduler.Scheduler, cronStore store.CronStore, stateRoot statepath.Root, approvalMgr *tools.ExecApprovalManager) {
	d := &methodDeps{srv: srv, sched: sched, cronStore: cronStore, stateRoot: stateRoot, approvalMgr: approvalMgr}
	r := srv.Router()

	r.Register(protocol.MethodConnect, d.handleConnect)
	r.Register(protocol.MethodHealth, d.handleHealth)
	r.Register(protocol.MethodStatus, d.handleStatus)

	r.Register(protocol.MethodAgent, d.handleAgent)
	r.Register(protocol.MethodChatSend, d.handleChatSend)
	r.Register(protocol.MethodChatHistory, d.handleChatHistory)
	r.Register(protocol.MethodChatAbort, d.handleChatAbort)

	r.Register(protocol.MethodSessionsList, d.handleSessionsList)
	r.Register(protocol.MethodSessionsPreview, d.handleSessionsPreview)
	r.Register(protocol.MethodSessionsDelete, d.handleSessionsDelete)
	r.Register(protocol.MethodSessionsReset, d.handleSessionsReset)

	r.Register(protocol.MethodCronList, d.handleCronList)
	r.Register(protocol.MethodCronCreate, d.handleCronCreate)
	r.Register(protocol.MethodCronUpdate, d.handleCronUpdate)
	r.Register(protocol.MethodCronDelete, d.handleCronDelete)
	r.Register(protocol.MethodCronToggle, d.handleCronToggle)
	r.Register(protocol.MethodCronRuns, d.handleCronRuns)

	if approvalMgr != nil {
		r.Register(protocol.MethodApprovalsList, d.handleApprovalsList)
		r.Register(protocol.MethodApprovalsApprove, d.handleApprovalsApprove)
		r.Register(protocol.MethodApprovalsDeny, d.handleApprovalsDeny)
	}
}

func decodeParams(req *protocol.RequestFrame, out interface{}) error {
	if len(req.Params) == 0 {
		return nil
	}
	return json.Unmarshal(req.Params, out)
}

// --- connect / health / status -------------------------------------------------

func (d *methodDeps) handleConnect(ctx context.Context, c *gateway.Client, req *protocol.RequestFrame) {
	c.Reply(req.ID, map[string]interface{}{
		"protocolVersion": protocol.ProtocolVersion,
		"clientId":        c.ID(),
	})
}

func (d *methodDeps) handleHealth(ctx context.Context, c *gateway.Client, req *protocol.RequestFrame) {
	c.Reply(req.ID, map[string]interface{}{"status": "ok"})
}

func (d *methodDeps) handleStatus(ctx context.Context, c *gateway.Client, req *protocol.RequestFrame) {
	cfg := d.srv.Config()
	agents := make([]string, 0, len(cfg.Agents.List))
	for id := range cfg.Agents.List {
		agents = append(agents, id)
	}
	c.Reply(req.ID, map[string]interface{}{
		"defaultAgent": cfg.ResolveDefaultAgentID(),
		"agents":       agents,
	})
}

// --- agent / chat.* -------------------------------------------------------------

type agentParams struct {
	AgentID string `json:"agentId"`
}

func (d *methodDeps) handleAgent(ctx context.Context, c *gateway.Client, req *protocol.RequestFrame) {
	var p agentParams
	if err := decodeParams(req, &p); err != nil {
		c.ReplyError(req.ID, "bad_params", err.Error())
		return
	}
	agentID := p.AgentID
	if agentID == "" {
		agentID = d.srv.Config().ResolveDefaultAgentID()
	}
	if _, err := d.srv.Agents().Resolve(agentID); err != nil {
		c.ReplyError(req.ID, "agent_not_found", err.Error())
		return
	}
	c.Reply(req.ID, map[string]interface{}{
		"agentId":     agentID,
		"displayName": d.srv.Config().ResolveDisplayName(agentID),
	})
}

type chatSendParams struct {
	AgentID  string `json:"agentId"`
	ChatID   string `json:"chatId"`
	PeerKind string `json:"peerKind"`
	Message  string `json:"message"`
	Stream   bool   `json:"stream"`
}

// handleChatSend schedules one agent turn onto the main lane. The reply is
// sent once the run completes; streamed chunks (Stream=true) arrive
// separately as chat.chunk bus events forwarded to every connected client.
func (d *methodDeps) handleChatSend(ctx context.Context, c *gateway.Client, req *protocol.RequestFrame) {
	var p chatSendParams
	if err := decodeParams(req, &p); err != nil {
		c.ReplyError(req.ID, "bad_params", err.Error())
		return
	}
	if p.Message == "" {
		c.ReplyError(req.ID, "bad_params", "message is required")
		return
	}

	cfg := d.srv.Config()
	agentID := p.AgentID
	if agentID == "" {
		agentID = cfg.ResolveDefaultAgentID()
	}
	peerKind := sessions.PeerKind(p.PeerKind)
	if peerKind == "" {
		peerKind = sessions.PeerDirect
	}
	chatID := p.ChatID
	if chatID == "" {
		chatID = "ws:" + c.ID()
	}
	sessionKey := sessions.BuildScopedSessionKey(agentID, "gateway", peerKind, chatID, cfg.Sessions.Scope, cfg.Sessions.DmScope, cfg.Sessions.MainKey)

	runID := fmt.Sprintf("ws-%s-%s", c.ID(), req.ID)
	outCh := d.sched.Schedule(ctx, scheduler.LaneMain, agent.RunRequest{
		SessionKey: sessionKey,
		Message:    p.Message,
		Channel:    "gateway",
		ChatID:     chatID,
		PeerKind:   string(peerKind),
		RunID:      runID,
		Stream:     p.Stream,
	})

	go func() {
		outcome := <-outCh
		if outcome.Err != nil {
			c.ReplyError(req.ID, "run_failed", outcome.Err.Error())
			return
		}
		c.Reply(req.ID, outcome.Result)
	}()
}

type chatHistoryParams struct {
	AgentID  string `json:"agentId"`
	ChatID   string `json:"chatId"`
	PeerKind string `json:"peerKind"`
	Limit    int    `json:"limit"`
}

func (d *methodDeps) handleChatHistory(ctx context.Context, c *gateway.Client, req *protocol.RequestFrame) {
	var p chatHistoryParams
	if err := decodeParams(req, &p); err != nil {
		c.ReplyError(req.ID, "bad_params", err.Error())
		return
	}
	sessionKey := d.resolveChatSessionKey(p.AgentID, p.ChatID, p.PeerKind)
	records, err := d.srv.Sessions().Load(sessionKey, p.Limit)
	if err != nil {
		c.ReplyError(req.ID, "load_failed", err.Error())
		return
	}
	c.Reply(req.ID, map[string]interface{}{"records": records})
}

type chatAbortParams struct {
	AgentID  string `json:"agentId"`
	ChatID   string `json:"chatId"`
	PeerKind string `json:"peerKind"`
	All      bool   `json:"all"`
}

func (d *methodDeps) handleChatAbort(ctx context.Context, c *gateway.Client, req *protocol.RequestFrame) {
	var p chatAbortParams
	if err := decodeParams(req, &p); err != nil {
		c.ReplyError(req.ID, "bad_params", err.Error())
		return
	}
	sessionKey := d.resolveChatSessionKey(p.AgentID, p.ChatID, p.PeerKind)
	var ok bool
	if p.All {
		ok = d.sched.CancelSession(sessionKey)
	} else {
		ok = d.sched.CancelOneSession(sessionKey)
	}
	c.Reply(req.ID, map[string]interface{}{"aborted": ok})
}

func (d *methodDeps) resolveChatSessionKey(agentID, chatID, peerKind string) string {
	cfg := d.srv.Config()
	if agentID == "" {
		agentID = cfg.ResolveDefaultAgentID()
	}
	pk := sessions.PeerKind(peerKind)
	if pk == "" {
		pk = sessions.PeerDirect
	}
	return sessions.BuildScopedSessionKey(agentID, "gateway", pk, chatID, cfg.Sessions.Scope, cfg.Sessions.DmScope, cfg.Sessions.MainKey)
}

// --- sessions.* -------------------------------------------------------------

type sessionsListParams struct {
	AgentID string `json:"agentId"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
}

func (d *methodDeps) handleSessionsList(ctx context.Context, c *gateway.Client, req *protocol.RequestFrame) {
	var p sessionsListParams
	if err := decodeParams(req, &p); err != nil {
		c.ReplyError(req.ID, "bad_params", err.Error())
		return
	}
	result, err := d.srv.Sessions().ListPaged(store.SessionListOpts{AgentID: p.AgentID, Limit: p.Limit, Offset: p.Offset})
	if err != nil {
		c.ReplyError(req.ID, "list_failed", err.Error())
		return
	}
	c.Reply(req.ID, result)
}

type sessionKeyParams struct {
	Key string `json:"key"`
}

func (d *methodDeps) handleSessionsPreview(ctx context.Context, c *gateway.Client, req *protocol.RequestFrame) {
	var p sessionKeyParams
	if err := decodeParams(req, &p); err != nil || p.Key == "" {
		c.ReplyError(req.ID, "bad_params", "key is required")
		return
	}
	records, err := d.srv.Sessions().Load(p.Key, 20)
	if err != nil {
		c.ReplyError(req.ID, "load_failed", err.Error())
		return
	}
	meta, err := d.srv.Sessions().Meta(p.Key)
	if err != nil {
		c.ReplyError(req.ID, "load_failed", err.Error())
		return
	}
	c.Reply(req.ID, map[string]interface{}{"records": records, "meta": meta})
}

func (d *methodDeps) handleSessionsDelete(ctx context.Context, c *gateway.Client, req *protocol.RequestFrame) {
	var p sessionKeyParams
	if err := decodeParams(req, &p); err != nil || p.Key == "" {
		c.ReplyError(req.ID, "bad_params", "key is required")
		return
	}
	d.sched.CancelSession(p.Key)
	if err := d.srv.Sessions().Delete(p.Key); err != nil {
		c.ReplyError(req.ID, "delete_failed", err.Error())
		return
	}
	c.Reply(req.ID, map[string]interface{}{"deleted": true})
}

func (d *methodDeps) handleSessionsReset(ctx context.Context, c *gateway.Client, req *protocol.RequestFrame) {
	var p sessionKeyParams
	if err := decodeParams(req, &p); err != nil || p.Key == "" {
		c.ReplyError(req.ID, "bad_params", "key is required")
		return
	}
	d.sched.CancelSession(p.Key)
	if err := d.srv.Sessions().Rewrite(p.Key, nil); err != nil {
		c.ReplyError(req.ID, "reset_failed", err.Error())
		return
	}
	c.Reply(req.ID, map[string]interface{}{"reset": true})
}

// --- cron.* -------------------------------------------------------------------

func (d *methodDeps) handleCronList(ctx context.Context, c *gateway.Client, req *protocol.RequestFrame) {
	jobs, err := d.cronStore.List()
	if err != nil {
		c.ReplyError(req.ID, "list_failed", err.Error())
		return
	}
	c.Reply(req.ID, map[string]interface{}{"jobs": jobs})
}

func (d *methodDeps) handleCronCreate(ctx context.Context, c *gateway.Client, req *protocol.RequestFrame) {
	var job store.CronJob
	if err := decodeParams(req, &job); err != nil {
		c.ReplyError(req.ID, "bad_params", err.Error())
		return
	}
	if job.ID == "" {
		c.ReplyError(req.ID, "bad_params", "id is required")
		return
	}
	job.Enabled = true
	if err := d.cronStore.Upsert(job); err != nil {
		c.ReplyError(req.ID, "create_failed", err.Error())
		return
	}
	c.Reply(req.ID, job)
}

func (d *methodDeps) handleCronUpdate(ctx context.Context, c *gateway.Client, req *protocol.RequestFrame) {
	var job store.CronJob
	if err := decodeParams(req, &job); err != nil {
		c.ReplyError(req.ID, "bad_params", err.Error())
		return
	}
	existing, ok, err := d.cronStore.Get(job.ID)
	if err != nil {
		c.ReplyError(req.ID, "update_failed", err.Error())
		return
	}
	if !ok {
		c.ReplyError(req.ID, "not_found", fmt.Sprintf("cron job %q not found", job.ID))
		return
	}
	job.FailureCount = existing.FailureCount
	job.LastRunAt = existing.LastRunAt
	job.LastResult = existing.LastResult
	job.BackoffUntil = existing.BackoffUntil
	if err := d.cronStore.Upsert(job); err != nil {
		c.ReplyError(req.ID, "update_failed", err.Error())
		return
	}
	c.Reply(req.ID, job)
}

func (d *methodDeps) handleCronDelete(ctx context.Context, c *gateway.Client, req *protocol.RequestFrame) {
	var p struct {
		ID string `json:"id"`
	}
	if err := decodeParams(req, &p); err != nil || p.ID == "" {
		c.ReplyError(req.ID, "bad_params", "id is required")
		return
	}
	if err := d.cronStore.Delete(p.ID); err != nil {
		c.ReplyError(req.ID, "delete_failed", err.Error())
		return
	}
	c.Reply(req.ID, map[string]interface{}{"deleted": true})
}

func (d *methodDeps) handleCronToggle(ctx context.Context, c *gateway.Client, req *protocol.RequestFrame) {
	var p struct {
		ID      string `json:"id"`
		Enabled bool   `json:"enabled"`
	}
	if err := decodeParams(req, &p); err != nil || p.ID == "" {
		c.ReplyError(req.ID, "bad_params", "id is required")
		return
	}
	job, ok, err := d.cronStore.Get(p.ID)
	if err != nil {
		c.ReplyError(req.ID, "toggle_failed", err.Error())
		return
	}
	if !ok {
		c.ReplyError(req.ID, "not_found", fmt.Sprintf("cron job %q not found", p.ID))
		return
	}
	job.Enabled = p.Enabled
	if err := d.cronStore.Upsert(job); err != nil {
		c.ReplyError(req.ID, "toggle_failed", err.Error())
		return
	}
	c.Reply(req.ID, job)
}

func (d *methodDeps) handleCronRuns(ctx context.Context, c *gateway.Client, req *protocol.RequestFrame) {
	var p struct {
		ID    string `json:"id"`
		Limit int    `json:"limit"`
	}
	if err := decodeParams(req, &p); err != nil || p.ID == "" {
		c.ReplyError(req.ID, "bad_params", "id is required")
		return
	}
	runs, err := cron.ReadRuns(d.stateRoot, p.ID, p.Limit)
	if err != nil {
		c.ReplyError(req.ID, "runs_failed", err.Error())
		return
	}
	c.Reply(req.ID, map[string]interface{}{"runs": runs})
}

// --- exec.approval.* ----------------------------------------------------------

func (d *methodDeps) handleApprovalsList(ctx context.Context, c *gateway.Client, req *protocol.RequestFrame) {
	c.Reply(req.ID, map[string]interface{}{"pending": d.approvalMgr.Pending()})
}

type approvalDecisionParams struct {
	ID string `json:"id"`
}

func (d *methodDeps) handleApprovalsApprove(ctx context.Context, c *gateway.Client, req *protocol.RequestFrame) {
	var p approvalDecisionParams
	if err := decodeParams(req, &p); err != nil || p.ID == "" {
		c.ReplyError(req.ID, "bad_params", "id is required")
		return
	}
	ok := d.approvalMgr.Resolve(p.ID, tools.ApprovalAllow)
	c.Reply(req.ID, map[string]interface{}{"resolved": ok})
}

func (d *methodDeps) handleApprovalsDeny(ctx context.Context, c *gateway.Client, req *protocol.RequestFrame) {
	var p approvalDecisionParams
	if err := decodeParams(req, &p); err != nil || p.ID == "" {
		c.ReplyError(req.ID, "bad_params", "id is required")
		return
	}
	ok := d.approvalMgr.Resolve(p.ID, tools.ApprovalDeny)
	c.Reply(req.ID, map[string]interface{}{"resolved": ok})
}
