package node

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lagoon-network/lagoon/src/chain"
	"github.com/lagoon-network/lagoon/src/head"
	"github.com/lagoon-network/lagoon/src/journal"
	"github.com/lagoon-network/lagoon/src/ledger"
	lnet "github.com/lagoon-network/lagoon/src/net"
	"github.com/lagoon-network/lagoon/src/peers"
	"github.com/sirupsen/logrus"
)

// queuedEvent carries an event through the queue with its remaining Wait
// retries.
type queuedEvent struct {
	event head.Event
	ttl   int
}

//Node owns the single source of truth: the head state, fed by exactly one
//worker that dequeues events, applies the head logic, persists the event and
//dispatches the resulting effects. Chain observations, network messages and
//client requests all enqueue events; nothing else touches the state.
type Node struct {
	state

	conf   *Config
	logger *logrus.Entry

	validator *Validator
	env       *head.Environment
	ldgr      ledger.Ledger

	headState *head.State  // owned by the worker
	lastState atomic.Value // read-only snapshots for the service

	journal journal.Journal

	trans lnet.Transport
	netCh <-chan lnet.WireMessage

	chainCtx   *chain.Context
	chainLocal *chain.LocalChainState
	submitter  chain.Submitter

	queue   chan queuedEvent
	waiting []queuedEvent

	subscribersMu sync.Mutex
	subscribers   []chan head.Notification

	controlTimer *ControlTimer

	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	start time.Time
}

//NewNode is a factory method that returns a Node instance
func NewNode(
	conf *Config,
	validator *Validator,
	env *head.Environment,
	ldgr ledger.Ledger,
	jrnl journal.Journal,
	trans lnet.Transport,
	chainCtx *chain.Context,
	chainLocal *chain.LocalChainState,
	submitter chain.Submitter,
) *Node {
	node := &Node{
		conf:         conf,
		logger:       conf.Logger.WithField("this_id", validator.ID()),
		validator:    validator,
		env:          env,
		ldgr:         ldgr,
		headState:    head.NewState(),
		journal:      jrnl,
		trans:        trans,
		netCh:        trans.Consumer(),
		chainCtx:     chainCtx,
		chainLocal:   chainLocal,
		submitter:    submitter,
		queue:        make(chan queuedEvent, conf.QueueCapacity),
		controlTimer: NewRandomControlTimer(),
		shutdownCh:   make(chan struct{}),
		start:        time.Now(),
	}

	node.lastState.Store(node.headState)

	return node
}

//Init replays the journal to recover the head state. It must run before the
//worker starts; the journal is not written during replay.
func (n *Node) Init() error {
	stored, err := n.journal.LoadAll()
	if err != nil {
		return err
	}

	for _, rec := range stored {
		outcome := head.Update(n.env, n.ldgr, n.headState, rec.Event)
		if outcome.Err != nil {
			// journaled events were valid when first applied
			n.logger.WithError(outcome.Err).WithField("event_id", rec.ID).Error("replaying journal")
			continue
		}
		if outcome.Wait {
			continue
		}
		n.headState = outcome.State
	}

	n.lastState.Store(n.headState)

	n.logger.WithFields(logrus.Fields{
		"replayed": len(stored),
		"status":   n.headState.Status.String(),
	}).Debug("Init")

	return nil
}

//RunAsync calls Run as a separate thread
func (n *Node) RunAsync() {
	go n.Run()
}

//Run invokes the main loop of the node: the single worker that serialises
//event application.
func (n *Node) Run() {
	go n.controlTimer.Run(n.conf.PingInterval)
	go n.consumeTransport()

	for {
		select {
		case qe := <-n.queue:
			n.processEvent(qe)
		case <-n.controlTimer.tickCh:
			n.sendPing()
			n.resetTimer()
		case <-n.shutdownCh:
			n.drainQueue()
			return
		}
	}
}

func (n *Node) resetTimer() {
	if !n.controlTimer.set {
		n.controlTimer.resetCh <- n.conf.PingInterval
	}
}

// consumeTransport decodes inbound wire messages and funnels them into the
// queue.
func (n *Node) consumeTransport() {
	for {
		select {
		case wire := <-n.netCh:
			msg, err := head.DecodeMessage(wire.Payload)
			if err != nil {
				n.logger.WithError(err).WithField("from", wire.FromID).Error("decoding message")
				continue
			}
			n.enqueue(&head.NetworkEvent{Message: msg})
		case <-n.shutdownCh:
			return
		}
	}
}

// enqueue adds an event to the queue with a fresh retry budget.
func (n *Node) enqueue(e head.Event) {
	select {
	case n.queue <- queuedEvent{event: e, ttl: n.conf.WaitRetries}:
	case <-n.shutdownCh:
	}
}

// loopback enqueues one of our own broadcasts without blocking the worker:
// a full queue would otherwise deadlock the goroutine that drains it.
func (n *Node) loopback(e head.Event) {
	qe := queuedEvent{event: e, ttl: n.conf.WaitRetries}
	select {
	case n.queue <- qe:
	default:
		go func() {
			select {
			case n.queue <- qe:
			case <-n.shutdownCh:
			}
		}()
	}
}

//Submit enqueues a client command.
func (n *Node) Submit(cmd head.Command) {
	n.enqueue(&head.ClientEvent{Command: cmd})
}

//EmitEvent enqueues an event produced by the chain follower.
func (n *Node) EmitEvent(e head.Event) {
	n.enqueue(e)
}

// processEvent is the heart of the worker: apply, persist, dispatch.
func (n *Node) processEvent(qe queuedEvent) {
	outcome := head.Update(n.env, n.ldgr, n.headState, qe.event)

	if outcome.Err != nil {
		// protocol violations are logged and reported, never fatal
		n.logger.WithError(outcome.Err).Warn("rejected event")
		if ce, ok := qe.event.(*head.ClientEvent); ok {
			n.notify(&head.CommandFailed{Command: ce.Command.Name(), Reason: outcome.Err.Error()})
		}
		return
	}

	if outcome.Wait {
		n.parkEvent(qe, outcome.WaitReason)
		return
	}

	// the journal write is ordered before effect dispatch: an effect is
	// never visible unless its causing event is durable
	if err := n.journal.Append(qe.event); err != nil {
		n.fatal(err)
		return
	}

	n.headState = outcome.State
	n.lastState.Store(n.headState)

	for _, effect := range outcome.Effects {
		n.dispatch(effect)
	}

	n.retryWaiting()
}

// parkEvent stores a Wait outcome for retry, bounded in depth and retries.
func (n *Node) parkEvent(qe queuedEvent, reason string) {
	qe.ttl--
	if qe.ttl <= 0 {
		n.logger.WithField("reason", reason).Warn("dropping event, retries exhausted")
		n.notify(&head.EventDropped{Reason: reason})
		return
	}

	if len(n.waiting) >= n.conf.WaitDepth {
		n.waiting = n.waiting[1:]
		n.logger.Warn("dropping oldest waiting event, queue depth exceeded")
		n.notify(&head.EventDropped{Reason: "wait queue overflow"})
	}

	n.waiting = append(n.waiting, qe)
}

// retryWaiting re-applies parked events after a state change unblocked them.
func (n *Node) retryWaiting() {
	if len(n.waiting) == 0 {
		return
	}

	retry := n.waiting
	n.waiting = nil
	for _, qe := range retry {
		n.processEvent(qe)
	}
}

// dispatch performs one effect. Effects of a single update are dispatched in
// the order returned.
func (n *Node) dispatch(effect head.Effect) {
	switch eff := effect.(type) {
	case *head.SendMessageEffect:
		n.broadcast(eff.Message)

	case *head.NotifyClientEffect:
		n.notify(eff.Notification)

	case *head.PostTxEffect:
		n.postTx(eff.Tx)

	case *head.DelayEffect:
		delayed := eff.Event
		wait := eff.Delay
		go func() {
			select {
			case <-time.After(wait):
				n.enqueue(delayed)
			case <-n.shutdownCh:
			}
		}()

	default:
		n.logger.Warnf("unknown effect %T", effect)
	}
}

// broadcast sends a message to every peer and loops it back into our own
// queue, so the protocol treats all parties uniformly.
func (n *Node) broadcast(msg head.Message) {
	n.loopback(&head.NetworkEvent{Message: msg})

	payload, err := head.EncodeMessage(msg)
	if err != nil {
		n.logger.WithError(err).Error("encoding message")
		return
	}

	wire := lnet.WireMessage{FromID: n.validator.ID(), Payload: payload}
	for _, party := range n.env.Parties.Parties {
		if party.ID() == n.validator.ID() {
			continue
		}
		target := party.NetAddr
		n.goFunc(func() {
			if err := n.trans.Send(target, wire); err != nil {
				n.logger.WithError(err).WithField("target", target).Debug("sending message")
			}
		})
	}
}

// postTx turns a posting intent into a base-ledger transaction against a
// snapshot of the current chain state and submits it. A submission failure
// is a system error and fatal to the node.
func (n *Node) postTx(intent head.PostChainTx) {
	tx, err := n.chainCtx.Build(n.chainLocal.Current(), intent)
	if err != nil {
		n.logger.WithError(err).Error("building chain tx")
		n.notify(&head.CommandFailed{Command: "post-tx", Reason: err.Error()})
		return
	}

	// submissions are not tracked by the shutdown waitgroup: in-flight
	// transactions are not cancelled and may or may not land
	go func() {
		if err := n.submitter.SubmitTx(tx); err != nil {
			n.fatal(err)
		}
	}()
}

func (n *Node) sendPing() {
	msg := &head.Ping{From: n.validator.ID(), Moniker: n.validator.Moniker}
	payload, err := head.EncodeMessage(msg)
	if err != nil {
		return
	}
	wire := lnet.WireMessage{FromID: n.validator.ID(), Payload: payload}
	for _, party := range n.env.Parties.Parties {
		if party.ID() == n.validator.ID() {
			continue
		}
		target := party.NetAddr
		n.goFunc(func() {
			if err := n.trans.Send(target, wire); err != nil {
				n.logger.WithError(err).WithField("target", target).Debug("sending ping")
			}
		})
	}
}

//Subscribe returns a channel of client notifications. Slow subscribers miss
//notifications rather than stalling the worker.
func (n *Node) Subscribe() <-chan head.Notification {
	n.subscribersMu.Lock()
	defer n.subscribersMu.Unlock()

	ch := make(chan head.Notification, 64)
	n.subscribers = append(n.subscribers, ch)
	return ch
}

func (n *Node) notify(notification head.Notification) {
	n.subscribersMu.Lock()
	defer n.subscribersMu.Unlock()

	for _, ch := range n.subscribers {
		select {
		case ch <- notification:
		default:
			n.logger.Warn("subscriber too slow, dropping notification")
		}
	}
}

// drainQueue applies everything still queued and returns. The journal and
// transport are closed by Shutdown, not here.
func (n *Node) drainQueue() {
	for {
		select {
		case qe := <-n.queue:
			n.processEvent(qe)
		default:
			return
		}
	}
}

// fatal handles system errors: log, notify subscribers and shut the node
// down. Run then returns; no exit status is reported to its caller.
func (n *Node) fatal(err error) {
	n.logger.WithError(err).Error("fatal system error")
	n.notify(&head.CommandFailed{Command: "node", Reason: err.Error()})
	n.Shutdown()
}

//Shutdown shuts the node down: the worker drains the queue, the journal is
//flushed and closed, then outstanding network operations are aborted.
//In-flight chain submissions are not cancelled; whether they landed is
//discovered on the next run via replay and chain resynchronisation.
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() {
		n.logger.Debug("Shutdown")

		n.setState(Shutdown)

		close(n.shutdownCh)

		n.waitRoutines()

		n.controlTimer.Shutdown()

		//transport and journal should only be closed once all concurrent
		//operations are finished otherwise they will panic trying to use
		//closed objects
		n.trans.Close()

		if err := n.journal.Close(); err != nil {
			n.logger.WithError(err).Error("closing journal")
		}
	})
}

//HeadState returns a read-only snapshot of the current head state.
func (n *Node) HeadState() *head.State {
	return n.lastState.Load().(*head.State)
}

//ID returns the validator ID
func (n *Node) ID() uint32 {
	return n.validator.ID()
}

//Moniker returns the validator moniker
func (n *Node) Moniker() string {
	return n.validator.Moniker
}

//GetParties returns the party set
func (n *Node) GetParties() []*peers.Party {
	return n.env.Parties.Parties
}

//GetStats returns stats
func (n *Node) GetStats() map[string]string {
	s := n.HeadState()

	stats := map[string]string{
		"status":          s.Status.String(),
		"queue_length":    strconv.Itoa(len(n.queue)),
		"waiting_events":  strconv.Itoa(len(n.waiting)),
		"uptime_seconds":  strconv.FormatFloat(time.Since(n.start).Seconds(), 'f', 0, 64),
		"id":              strconv.FormatUint(uint64(n.validator.ID()), 10),
		"moniker":         n.validator.Moniker,
		"num_parties":     strconv.Itoa(n.env.Parties.Len()),
		"state":           n.getState().String(),
		"chain_phase":     n.chainLocal.Current().Phase.String(),
		"chain_slot":      strconv.FormatUint(n.chainLocal.Current().RecordedAt.Slot, 10),
		"snapshot_number": "0",
	}

	if s.ConfirmedSnapshot != nil {
		stats["snapshot_number"] = strconv.FormatUint(s.ConfirmedSnapshot.Snapshot.Number, 10)
	}

	return stats
}
