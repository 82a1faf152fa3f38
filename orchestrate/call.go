package orchestrate

import (
	"context"
	"fmt"
	"time"

	"github.com/sun-rs/three"
	"github.com/sun-rs/three/catalog"
	"github.com/sun-rs/three/config"
	"github.com/sun-rs/three/fallback"
	"github.com/sun-rs/three/parser"
	"github.com/sun-rs/three/process"
	"github.com/sun-rs/three/session"
)

// stderrExcerptBytes bounds how much of a failing invocation's stderr is
// carried onto the surfaced Result.
const stderrExcerptBytes = 2000

// CallRequest is the engine-facing shape of the `call` tool surface
// operation.
type CallRequest struct {
	Prompt              string
	WorkDir             string // "cd"
	Role                string
	Client              string
	ConversationID      string
	SessionKey          string
	SessionID           string
	ForceNewSession     bool
	TimeoutSecsOverride int
	Contract            string // "" | "patch_with_citations"
	ValidatePatch       bool
	ModelOverride       string // "backend/model@variant", optional
}

// Call performs one resolved invocation end to end: resolve, acquire
// session, render args, spawn, parse, persist, contract-check.
func (e *Engine) Call(ctx context.Context, req CallRequest) three.Result {
	profile, err := e.resolver.ResolveProfile(req.Role, req.TimeoutSecsOverride, nil)
	if err != nil {
		return three.Failure(asEngineError(err))
	}

	if req.ModelOverride != "" {
		overridden, err := e.applyModelOverride(profile, req.ModelOverride)
		if err != nil {
			return three.Failure(asEngineError(err))
		}
		profile = overridden
	}

	adapter, ok := e.catalog.Lookup(catalog.BackendID(profile.BackendID))
	if !ok {
		return three.Failure(three.NewError(three.KindConfigInvalid, "role %q: backend %q not in catalog", req.Role, profile.BackendID))
	}

	var warnings []string
	scopeKey := req.SessionKey
	if scopeKey == "" {
		scopeKey = session.ScopeKey(req.WorkDir, req.Role, profile.BackendID+"/"+profile.ModelID, req.Client, req.ConversationID)
		if req.ConversationID == "" {
			warnings = append(warnings, "missing conversation_id: auto-resume may span top-level chats")
		}
	}

	release := e.coord.Lock(scopeKey)
	defer release()

	return e.callLocked(ctx, scopeKey, adapter, profile, req, warnings, true, true)
}

// applyModelOverride re-points profile at model_override's backend/model,
// re-checking the capability gate against the new adapter.
func (e *Engine) applyModelOverride(profile three.RoleProfile, override string) (three.RoleProfile, error) {
	ref, err := config.ParseModelRef(override)
	if err != nil {
		return three.RoleProfile{}, err
	}
	adapter, ok := e.catalog.Lookup(catalog.BackendID(ref.Backend))
	if !ok {
		return three.RoleProfile{}, three.NewError(three.KindConfigInvalid, "model_override: unknown backend %q", ref.Backend)
	}
	if profile.Capabilities.Filesystem != "" && !adapter.AllowsFilesystem(profile.Capabilities.Filesystem) {
		return three.RoleProfile{}, three.NewError(three.KindUnsupportedCapability,
			"model_override: backend %q does not support filesystem=%q", ref.Backend, profile.Capabilities.Filesystem)
	}
	profile.BackendID = ref.Backend
	profile.ModelID = ref.Model
	profile.Variant = ref.Variant
	if ref.Variant != "" {
		profile.ModelID = ref.Model + "@" + ref.Variant
	}
	return profile, nil
}

// callLocked runs one invocation attempt while the caller already holds
// scopeKey's mutual-exclusion lock. allowFallback/allowSessionRetry are
// false on the recursive retries this function issues for itself, so a
// fallback attempt can't itself fall back again and a session-reset retry
// can't loop forever.
func (e *Engine) callLocked(ctx context.Context, scopeKey string, adapter catalog.Adapter, profile three.RoleProfile, req CallRequest, warnings []string, allowFallback, allowSessionRetry bool) three.Result {
	decision, err := e.coord.Decide(scopeKey, req.ForceNewSession, req.SessionID, adapter)
	if err != nil {
		return three.Failure(asEngineError(err), warnings...)
	}
	if req.ForceNewSession && req.SessionID != "" {
		warnings = append(warnings, "force_new_session discarded explicit session_id")
	}

	if decision.Mode != three.ModeNew && session.IsStateless(adapter) {
		releaseStateless, err := e.coord.BeginStatelessResume(req.WorkDir, adapter.BackendID)
		if err != nil {
			return three.Failure(asEngineError(err), warnings...)
		}
		defer releaseStateless()
	}

	prompt := req.Prompt
	if decision.Mode == three.ModeNew && profile.Persona != nil && profile.Persona.Prompt != "" {
		prompt = profile.Persona.Prompt + "\n\n" + prompt
	}
	if adapter.BackendID == catalog.Kimi {
		prompt = catalog.ApplyKimiGuardrail(prompt, profile.Capabilities.Filesystem)
	}

	argv, transport, err := buildInvocation(adapter, profile, prompt, req.WorkDir, decision.ResumeSessionID, decision.Mode != three.ModeNew)
	if err != nil {
		return three.Failure(asEngineError(err), warnings...)
	}
	e.log.Debugw("rendered invocation", "role", req.Role, "backend", adapter.BackendID, "mode", decision.Mode, "transport", transport)

	stdinData := ""
	if transport == three.TransportStdin {
		stdinData = prompt
	}

	timeout := time.Duration(profile.TimeoutSecs) * time.Second
	e.log.Infow("spawning backend", "role", req.Role, "backend", adapter.BackendID, "timeout_secs", profile.TimeoutSecs)
	outcome, err := process.Run(ctx, adapter.Binary, argv, req.WorkDir, stdinData, timeout, e.procOpts)
	if err != nil {
		e.log.Errorw("spawn failed", "role", req.Role, "backend", adapter.BackendID, "error", err)
		return three.Failure(asEngineError(err), warnings...)
	}
	e.log.Infow("backend exited", "role", req.Role, "backend", adapter.BackendID, "exit_code", outcome.ExitCode, "elapsed", outcome.Elapsed, "timed_out", outcome.TimedOut)

	if ctx.Err() != nil {
		return three.Failure(three.NewError(three.KindCancelled, "invocation cancelled"), warnings...)
	}
	if outcome.TimedOut {
		return three.Failure(three.NewError(three.KindTimeout, "backend exceeded %ds timeout", profile.TimeoutSecs).WithStderr(tailExcerpt(outcome.Stderr)), warnings...)
	}

	parsed, perr := parser.Parse(adapter.OutputParser, outcome.Stdout)

	if outcome.ExitCode != 0 || perr != nil {
		if allowSessionRetry && decision.Mode != three.ModeNew {
			if rerr := e.coord.RecoverFromInvalidResume(scopeKey); rerr == nil {
				e.log.Warnw("session invalid on resume, retrying forced-new", "role", req.Role, "backend", adapter.BackendID)
				retryReq := req
				retryReq.ForceNewSession = true
				retryReq.SessionID = ""
				return e.callLocked(ctx, scopeKey, adapter, profile, retryReq, append(warnings, "session_reset"), allowFallback, false)
			}
		}

		backendErr := three.NewError(three.KindBackendError, "backend exited %d", outcome.ExitCode)
		if perr != nil {
			if terr, ok := perr.(*three.Error); ok {
				backendErr = terr
			}
		}
		backendErr = backendErr.WithStderr(tailExcerpt(outcome.Stderr))

		if allowFallback && profile.BackendFallback != nil &&
			fallback.MatchesAny(profile.BackendFallback.Patterns, outcome.Stderr+"\n"+backendErr.Detail) {
			e.log.Warnw("invocation failed, attempting model fallback", "role", req.Role, "backend", adapter.BackendID, "kind", backendErr.Kind)
			if result, ok := e.tryFallback(ctx, profile, req, warnings); ok {
				return result
			}
		}
		e.log.Errorw("invocation failed", "role", req.Role, "backend", adapter.BackendID, "kind", backendErr.Kind, "detail", backendErr.Detail)
		return three.Failure(backendErr, warnings...)
	}

	if err := e.coord.RecordSuccess(scopeKey, string(adapter.BackendID), profile.RoleID, parsed.SessionID, session.IsStateless(adapter)); err != nil {
		warnings = append(warnings, "session record not persisted: "+err.Error())
	}

	if req.Contract == "patch_with_citations" {
		if cerr := fallback.CheckPatchWithCitations(parsed.Message); cerr != nil {
			return three.Failure(cerr, warnings...)
		}
		if req.ValidatePatch {
			body := fallback.ExtractPatchBody(parsed.Message)
			if verr := fallback.ValidatePatchSyntax(ctx, req.WorkDir, body); verr != nil {
				return three.Failure(verr, warnings...)
			}
		}
	}

	return three.Result{Success: true, SessionID: parsed.SessionID, Message: parsed.Message, Warnings: warnings}
}

// tryFallback retries the invocation once against profile.BackendFallback's
// model, under its own scope lock (fallback model_id differs, so it owns a
// distinct scope key), with further fallback disabled. The fallback's scope
// key is always derived from the fallback model; a caller-supplied
// session_key is not used for it, since the caller still holds that key's
// lock.
func (e *Engine) tryFallback(ctx context.Context, profile three.RoleProfile, req CallRequest, warnings []string) (three.Result, bool) {
	fb := profile.BackendFallback
	adapter, ok := e.catalog.Lookup(catalog.BackendID(fb.Model.Backend))
	if !ok {
		return three.Result{}, false
	}
	if profile.Capabilities.Filesystem != "" && !adapter.AllowsFilesystem(profile.Capabilities.Filesystem) {
		return three.Result{}, false
	}

	fromLabel := profile.BackendID + "/" + profile.ModelID
	newProfile := profile
	newProfile.BackendID = fb.Model.Backend
	newProfile.ModelID = fb.Model.Model
	newProfile.Variant = fb.Model.Variant
	if fb.Model.Variant != "" {
		newProfile.ModelID = fb.Model.Model + "@" + fb.Model.Variant
	}
	newProfile.BackendFallback = nil
	toLabel := newProfile.BackendID + "/" + newProfile.ModelID

	warnings = append(warnings, fmt.Sprintf("model fallback used: %s→%s", fromLabel, toLabel))

	scopeKey := session.ScopeKey(req.WorkDir, req.Role, newProfile.BackendID+"/"+newProfile.ModelID, req.Client, req.ConversationID)
	release := e.coord.Lock(scopeKey)
	defer release()

	return e.callLocked(ctx, scopeKey, adapter, newProfile, req, warnings, false, true), true
}

// asEngineError coerces any error from a dependency package into a
// *three.Error. Errors that are not already a *three.Error, such as the
// wrapped three.ErrUnavailable that process.Run returns for a binary
// missing from PATH, become KindIOFailed.
func asEngineError(err error) *three.Error {
	if terr, ok := err.(*three.Error); ok {
		return terr
	}
	return three.NewError(three.KindIOFailed, "%v", err)
}

// tailExcerpt bounds a stderr capture to its final stderrExcerptBytes so a
// chatty failing process doesn't balloon the surfaced Result.
func tailExcerpt(s string) string {
	if len(s) <= stderrExcerptBytes {
		return s
	}
	return s[len(s)-stderrExcerptBytes:]
}
