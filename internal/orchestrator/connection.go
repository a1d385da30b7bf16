package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/antoniostano/papertutor/internal/protocol"
	"github.com/antoniostano/papertutor/internal/session"
	"github.com/antoniostano/papertutor/internal/tutor"
)

// RunConnection serves one websocket connection until inbound closes or ctx
// ends. Turns run in the background so a reset can land while the model is
// still answering; a second message during a turn is rejected.
func (o *Orchestrator) RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error {
	send := func(msg any) bool {
		select {
		case <-ctx.Done():
			return false
		case outbound <- msg:
			return true
		}
	}

	if err := o.sendState(s.ID, send); err != nil {
		return err
	}

	var turns sync.WaitGroup
	defer turns.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-inbound:
			if !ok {
				return nil
			}
			switch msg := raw.(type) {
			case protocol.UserMessage:
				if msg.SessionID != s.ID {
					send(errorEvent(s.ID, Failure{Code: "session_mismatch", Source: "gateway", Detail: "session_id does not match connection"}))
					continue
				}
				turns.Add(1)
				go func(text string) {
					defer turns.Done()
					o.runTurn(ctx, s.ID, text, send)
				}(msg.Text)
			case protocol.ClientControl:
				var err error
				switch msg.Action {
				case protocol.ActionReset:
					_, err = o.Reset(s.ID)
				case protocol.ActionClear:
					_, err = o.ClearConversation(s.ID)
				}
				if err != nil {
					send(errorEvent(s.ID, FailureOf(err)))
					continue
				}
				if err := o.sendState(s.ID, send); err != nil {
					return err
				}
			}
		}
	}
}

func (o *Orchestrator) runTurn(ctx context.Context, sessionID, text string, send func(any) bool) {
	turnID := uuid.NewString()
	res, err := o.submit(ctx, sessionID, turnID, text, func(delta string) error {
		if !send(protocol.AssistantTextDelta{
			Type:      protocol.TypeAssistantTextDelta,
			SessionID: sessionID,
			TurnID:    turnID,
			TextDelta: delta,
		}) {
			return ctx.Err()
		}
		return nil
	})
	if err != nil {
		send(errorEvent(sessionID, FailureOf(err)))
		return
	}
	send(protocol.AssistantMessage{
		Type:             protocol.TypeAssistantMessage,
		SessionID:        sessionID,
		TurnID:           res.TurnID,
		Text:             res.Reply,
		TranscriptLength: res.TranscriptLength,
	})
}

func (o *Orchestrator) sendState(sessionID string, send func(any) bool) error {
	_, snap, err := o.Snapshot(sessionID)
	if err != nil {
		send(errorEvent(sessionID, FailureOf(err)))
		return err
	}
	send(sessionState(sessionID, snap))
	return nil
}

func sessionState(sessionID string, snap tutor.Snapshot) protocol.SessionState {
	msg := protocol.SessionState{
		Type:             protocol.TypeSessionState,
		SessionID:        sessionID,
		State:            string(snap.State),
		TranscriptLength: len(snap.Transcript),
	}
	if snap.Document != nil {
		msg.DocumentName = snap.Document.Name
	}
	return msg
}

func errorEvent(sessionID string, f Failure) protocol.ErrorEvent {
	return protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: sessionID,
		Code:      f.Code,
		Source:    f.Source,
		Retryable: f.Retryable,
		Detail:    f.Detail,
	}
}
