package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/DoyleJ11/cricket-live-backend/internal/broadcast"
	"github.com/DoyleJ11/cricket-live-backend/internal/engine"
	"github.com/DoyleJ11/cricket-live-backend/internal/hub"
	"github.com/DoyleJ11/cricket-live-backend/internal/identity"
	"github.com/DoyleJ11/cricket-live-backend/internal/logging"
	"github.com/DoyleJ11/cricket-live-backend/internal/match"
	"github.com/DoyleJ11/cricket-live-backend/pkg/types"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

type Config struct {
	Hub      *hub.Hub
	Broker   *broadcast.Broker
	Verifier *identity.Verifier
	Buffer   int
	Logger   *zap.Logger
	// OriginPatterns are passed to websocket.Accept; empty means same origin only.
	OriginPatterns []string
}

// Handler streams snapshots of one match to a client. Viewers connect
// without a token; scorers pass one and may submit balls on the same socket.
func Handler(cfg Config) http.HandlerFunc {
	log := logging.OrNop(cfg.Logger)

	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("match")
		if id == "" {
			http.Error(w, "missing match", http.StatusBadRequest)
			return
		}

		var userID string
		if tok := identity.TokenFromRequest(r); tok != "" {
			uid, err := cfg.Verifier.Verify(tok)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			userID = uid
		}

		mc, err := cfg.Hub.Get(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		if mc == nil {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: cfg.OriginPatterns})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		log := log.With(zap.String(logging.FieldMatchID, id), zap.String(logging.FieldUserID, userID))

		// Subscribe before reading the current snapshot so nothing falls in
		// between; clients ignore versions they already have.
		sub := cfg.Broker.Subscribe(match.Topic(id), cfg.Buffer)
		defer sub.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		first, _ := json.Marshal(types.SnapshotMessage(mc.Snapshot()))
		if err := write(ctx, conn, first); err != nil {
			return
		}

		// Writer goroutine
		go func() {
			defer cancel()
			for msg := range sub.C {
				if err := write(ctx, conn, msg.Payload); err != nil {
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
			// Dropped by the broker for falling behind.
			log.Info("subscriber closed")
			conn.Close(websocket.StatusPolicyViolation, "too slow, reconnect")
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(ctx, conn, "bad_json", errors.New("bad json"))
				continue
			}
			if err := handle(ctx, mc, cm, userID); err != nil {
				writeError(ctx, conn, ErrorCode(err), err)
			}
		}
	}
}

// handle applies a client command. Success is reported by the broadcast.
func handle(ctx context.Context, mc *match.Machine, cm types.ClientMessage, userID string) error {
	switch cm.Type {
	case types.MsgSubmitBall:
		if cm.Ball == nil {
			return types.ErrInvalidSubmission
		}
		ev, err := cm.Ball.ToBallEvent()
		if err != nil {
			return err
		}
		_, err = mc.Submit(ctx, ev, userID)
		return err
	case types.MsgChangeBowler:
		_, err := mc.ChangeBowler(ctx, cm.Bowler, userID)
		return err
	default:
		return errUnknownType
	}
}

var errUnknownType = errors.New("unknown message type")

// ErrorCode gives clients a stable code for err.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrRuleViolation):
		return "rule_violation"
	case errors.Is(err, types.ErrInvalidSubmission), errors.Is(err, errUnknownType):
		return "bad_request"
	case errors.Is(err, match.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, match.ErrBusy):
		return "busy"
	case errors.Is(err, match.ErrMatchClosed):
		return "match_closed"
	case errors.Is(err, match.ErrStopped):
		return "stopped"
	default:
		return "internal"
	}
}

func write(ctx context.Context, conn *websocket.Conn, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

func writeError(ctx context.Context, conn *websocket.Conn, code string, err error) {
	payload, _ := json.Marshal(types.ErrorMessage(code, err))
	_ = write(ctx, conn, payload)
}
