package siproom

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	gosip "github.com/ghettovoice/gosip"
	"github.com/ghettovoice/gosip/sip"
	"github.com/ghettovoice/gosip/util"
	"github.com/sirupsen/logrus"

	"orderviz/session"
)

// Compile-time interface check.
var _ session.Room = (*Room)(nil)

// TopicHeader carries the data packet topic on INFO and MESSAGE requests.
const TopicHeader = "X-Topic"

// server is the subset of gosip.Server the room needs.
type server interface {
	OnRequest(method sip.RequestMethod, handler gosip.RequestHandler) error
	Request(req sip.Request) (sip.ClientTransaction, error)
	Respond(res sip.Response) (sip.ServerTransaction, error)
	RespondOnRequest(request sip.Request, status sip.StatusCode, reason, body string, headers []sip.Header) (sip.ServerTransaction, error)
}

// leg is an answered call from a remote participant. Legs carry
// signalling and data only; no media is negotiated.
type leg struct {
	callID   string
	identity string
	tag      string
	local    *sip.Address
	remote   *sip.Address
	cseq     uint
}

// Room is a session carried over SIP: every answered call is a remote
// participant, and topic-tagged INFO/MESSAGE requests are its data
// channel. Participants expose no audio tracks, so mute and unmute are
// no-ops on this transport.
type Room struct {
	srv server
	log *logrus.Entry

	mu          sync.Mutex
	handlers    map[uint64]func(session.DataPacket)
	nextHandler uint64
	legs        map[string]*leg
}

// New registers request handlers on srv.
func New(srv server, log *logrus.Entry) (*Room, error) {
	r := &Room{
		srv:      srv,
		log:      log,
		handlers: make(map[uint64]func(session.DataPacket)),
		legs:     make(map[string]*leg),
	}
	handlers := map[sip.RequestMethod]gosip.RequestHandler{
		sip.INVITE:  r.handleInvite,
		sip.ACK:     r.handleAck,
		sip.BYE:     r.handleBye,
		sip.INFO:    r.handleData,
		sip.MESSAGE: r.handleData,
	}
	for _, method := range []sip.RequestMethod{sip.INVITE, sip.ACK, sip.BYE, sip.INFO, sip.MESSAGE} {
		if err := srv.OnRequest(method, handlers[method]); err != nil {
			return nil, fmt.Errorf("register %s handler: %w", method, err)
		}
	}
	return r, nil
}

func callIDOf(req sip.Request) string {
	cid, _ := req.CallID()
	if cid == nil {
		return ""
	}
	return cid.String()
}

func userOf(addr *sip.Address) string {
	if addr == nil || addr.Uri == nil {
		return ""
	}
	if u := addr.Uri.User(); u != nil {
		return u.String()
	}
	return ""
}

func withParams(addr *sip.Address) *sip.Address {
	if addr.Params == nil {
		addr.Params = sip.NewParams()
	}
	return addr
}

// handleInvite answers the call and tracks it as a participant.
func (r *Room) handleInvite(req sip.Request, tx sip.ServerTransaction) {
	callID := callIDOf(req)
	fromHdr, _ := req.From()
	toHdr, _ := req.To()
	if callID == "" || fromHdr == nil || toHdr == nil {
		r.log.Warn("rejecting malformed INVITE")
		r.respond(req, sip.StatusCode(400), "Bad Request")
		return
	}

	remote := withParams(sip.NewAddressFromFromHeader(fromHdr))
	local := withParams(sip.NewAddressFromToHeader(toHdr))
	identity := userOf(remote)
	if identity == "" {
		identity = callID
	}

	// a re-INVITE keeps the dialog tag and CSeq of the known leg
	r.mu.Lock()
	l, known := r.legs[callID]
	if !known {
		tag := util.RandString(8)
		local.Params = local.Params.Add("tag", sip.String{Str: tag})
		l = &leg{
			callID:   callID,
			identity: identity,
			tag:      tag,
			local:    local,
			remote:   remote,
			cseq:     1,
		}
		r.legs[callID] = l
	}
	tag := l.tag
	r.mu.Unlock()

	res := sip.NewResponseFromRequest("", req, sip.StatusCode(200), "OK", "")
	if hdr, ok := res.To(); ok {
		if hdr.Params == nil {
			hdr.Params = sip.NewParams()
		}
		hdr.Params = hdr.Params.Add("tag", sip.String{Str: tag})
	}
	if _, err := r.srv.Respond(res); err != nil {
		r.log.Warnf("send 200 OK for %s: %v", callID, err)
	}
	if known {
		r.log.WithField("call", callID).Debug("call refreshed")
		return
	}
	r.log.WithFields(logrus.Fields{"call": callID, "participant": identity}).Info("call answered")
}

func (r *Room) handleAck(req sip.Request, tx sip.ServerTransaction) {
	r.log.Debugf("received SIP ACK: %s", callIDOf(req))
}

// handleBye drops the participant.
func (r *Room) handleBye(req sip.Request, tx sip.ServerTransaction) {
	callID := callIDOf(req)
	r.mu.Lock()
	_, ok := r.legs[callID]
	delete(r.legs, callID)
	r.mu.Unlock()
	if !ok {
		r.respond(req, sip.StatusCode(481), "Call/Transaction Does Not Exist")
		return
	}
	r.respond(req, sip.StatusCode(200), "OK")
	r.log.WithField("call", callID).Info("call ended")
}

// handleData turns a topic-tagged INFO or MESSAGE into a data packet.
// Requests without a topic are acknowledged and ignored.
func (r *Room) handleData(req sip.Request, tx sip.ServerTransaction) {
	r.respond(req, sip.StatusCode(200), "OK")

	hdrs := req.GetHeaders(TopicHeader)
	if len(hdrs) == 0 {
		r.log.Debugf("ignoring %s without %s", req.Method(), TopicHeader)
		return
	}
	from := ""
	if fromHdr, ok := req.From(); ok && fromHdr != nil {
		from = userOf(sip.NewAddressFromFromHeader(fromHdr))
	}
	r.dispatch(session.DataPacket{
		Topic:   hdrs[0].Value(),
		Payload: []byte(req.Body()),
		From:    from,
	})
}

func (r *Room) respond(req sip.Request, status sip.StatusCode, reason string) {
	if _, err := r.srv.RespondOnRequest(req, status, reason, "", nil); err != nil {
		r.log.Warnf("respond %d to %s: %v", status, req.Method(), err)
	}
}

func (r *Room) dispatch(p session.DataPacket) {
	r.mu.Lock()
	handlers := make([]func(session.DataPacket), 0, len(r.handlers))
	for _, h := range r.handlers {
		handlers = append(handlers, h)
	}
	r.mu.Unlock()
	for _, h := range handlers {
		h(p)
	}
}

// OnData implements session.Room.
func (r *Room) OnData(fn func(session.DataPacket)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextHandler
	r.nextHandler++
	r.handlers[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.handlers, id)
	}
}

// PublishData implements session.Room by sending an INFO on every active
// call.
func (r *Room) PublishData(ctx context.Context, p session.DataPacket) error {
	r.mu.Lock()
	legs := make([]*leg, 0, len(r.legs))
	for _, l := range r.legs {
		l.cseq++
		copied := *l
		legs = append(legs, &copied)
	}
	r.mu.Unlock()

	var errs []error
	for _, l := range legs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		req, err := r.buildInfo(l, p)
		if err != nil {
			errs = append(errs, fmt.Errorf("call %s: %w", l.callID, err))
			continue
		}
		if _, err := r.srv.Request(req); err != nil {
			errs = append(errs, fmt.Errorf("call %s: send INFO: %w", l.callID, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Room) buildInfo(l *leg, p session.DataPacket) (sip.Request, error) {
	cid := sip.CallID(l.callID)
	ctype := sip.ContentType("text/plain;charset=utf-8")
	rb := sip.NewRequestBuilder().
		SetMethod(sip.INFO).
		SetRecipient(l.remote.Uri).
		SetFrom(l.local).
		SetTo(l.remote).
		SetContact(l.local).
		SetCallID(&cid).
		SetSeqNo(l.cseq).
		SetContentType(&ctype).
		SetBody(string(p.Payload))
	rb.AddHeader(&sip.GenericHeader{HeaderName: TopicHeader, Contents: p.Topic})

	req, err := rb.Build()
	if err != nil {
		return nil, fmt.Errorf("build INFO: %w", err)
	}
	return req, nil
}

// RemoteParticipants implements session.Room, ordered by identity.
func (r *Room) RemoteParticipants() []session.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.Participant, 0, len(r.legs))
	for _, l := range r.legs {
		out = append(out, participant{identity: l.identity})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity() < out[j].Identity() })
	return out
}

type participant struct {
	identity string
}

func (p participant) Identity() string                  { return p.identity }
func (p participant) AudioTracks() []session.AudioTrack { return nil }
