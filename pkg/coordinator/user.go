package coordinator

import (
	"github.com/okonor/parley/pkg/api"
	"github.com/okonor/parley/pkg/com"
	"github.com/okonor/parley/pkg/logger"
)

// wire is the connection surface the hub needs from a participant socket.
type wire interface {
	Notify(t uint16, payload any) error
	Route(p com.In, payload any) error
	Close()
}

// User is a single connected participant.
// Identity is assigned here, at connection time, and never trusted
// from the client side.
type User struct {
	id   com.Uid
	conn wire
	log  *logger.Logger

	// name and room are bound on join; both are mutated only on the
	// connection's own packet goroutine and under the registry lock.
	name string
	room string
}

func NewUser(conn wire, log *logger.Logger) *User {
	id := com.NewUid()
	return &User{
		id:   id,
		conn: conn,
		log:  log.Extend(log.With().Str("cid", id.Short())),
	}
}

func (u *User) Id() com.Uid { return u.id }

func (u *User) Member() api.Member { return api.Member{Id: u.id.String(), Name: u.name} }

func (u *User) Notify(t api.PT, payload any) {
	if err := u.conn.Notify(uint16(t), payload); err != nil {
		u.log.Error().Err(err).Str(logger.DirectionField, "→").Msgf("%v", t)
	}
}

func (u *User) Reply(p com.In, payload any) {
	if err := u.conn.Route(p, payload); err != nil {
		u.log.Error().Err(err).Msgf("reply to #%v", p.T)
	}
}
