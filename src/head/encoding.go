package head

import (
	"bytes"
	"fmt"

	"github.com/ugorji/go/codec"
)

/*
Canonical encoding of messages and events.

Everything on the wire and in the journal is a two-level envelope: a type tag
plus the canonical JSON encoding of the concrete struct. Encoding is canonical
(sorted map keys) so that equal values always encode identically, which
matters for signature domains. Decoding is strict: an unknown type tag or an
unknown field is a hard error, never silently tolerated.
*/

type envelope struct {
	Type string
	Body []byte
}

func encodeCanonical(v interface{}) ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func decodeStrict(data []byte, v interface{}) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	jh.ErrorIfNoField = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(v)
}

func wrap(typeTag string, v interface{}) ([]byte, error) {
	body, err := encodeCanonical(v)
	if err != nil {
		return nil, err
	}
	return encodeCanonical(envelope{Type: typeTag, Body: body})
}

/*******************************************************************************
Messages
*******************************************************************************/

// Message type tags.
const (
	wireReqTx = "req-tx"
	wireAckTx = "ack-tx"
	wireReqSn = "req-sn"
	wireAckSn = "ack-sn"
	wirePing  = "ping"
)

// EncodeMessage returns the canonical wire encoding of a message.
func EncodeMessage(m Message) ([]byte, error) {
	switch msg := m.(type) {
	case *ReqTx:
		return wrap(wireReqTx, msg)
	case *AckTx:
		return wrap(wireAckTx, msg)
	case *ReqSn:
		return wrap(wireReqSn, msg)
	case *AckSn:
		return wrap(wireAckSn, msg)
	case *Ping:
		return wrap(wirePing, msg)
	default:
		return nil, fmt.Errorf("cannot encode message %T", m)
	}
}

// DecodeMessage parses a canonical wire encoding back into a message.
func DecodeMessage(data []byte) (Message, error) {
	var env envelope
	if err := decodeStrict(data, &env); err != nil {
		return nil, err
	}

	var m Message
	switch env.Type {
	case wireReqTx:
		m = &ReqTx{}
	case wireAckTx:
		m = &AckTx{}
	case wireReqSn:
		m = &ReqSn{}
	case wireAckSn:
		m = &AckSn{}
	case wirePing:
		m = &Ping{}
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}

	if err := decodeStrict(env.Body, m); err != nil {
		return nil, err
	}
	return m, nil
}

/*******************************************************************************
Commands
*******************************************************************************/

const (
	cmdInit    = "init"
	cmdCommit  = "commit"
	cmdNewTx   = "new-tx"
	cmdClose   = "close"
	cmdContest = "contest"
	cmdAbort   = "abort"
	cmdGetUTxO = "get-utxo"
)

func encodeCommand(c Command) ([]byte, error) {
	switch cmd := c.(type) {
	case *InitCommand:
		return wrap(cmdInit, cmd)
	case *CommitCommand:
		return wrap(cmdCommit, cmd)
	case *NewTxCommand:
		return wrap(cmdNewTx, cmd)
	case *CloseCommand:
		return wrap(cmdClose, cmd)
	case *ContestCommand:
		return wrap(cmdContest, cmd)
	case *AbortCommand:
		return wrap(cmdAbort, cmd)
	case *GetUTxOCommand:
		return wrap(cmdGetUTxO, cmd)
	default:
		return nil, fmt.Errorf("cannot encode command %T", c)
	}
}

func decodeCommand(data []byte) (Command, error) {
	var env envelope
	if err := decodeStrict(data, &env); err != nil {
		return nil, err
	}

	var c Command
	switch env.Type {
	case cmdInit:
		c = &InitCommand{}
	case cmdCommit:
		c = &CommitCommand{}
	case cmdNewTx:
		c = &NewTxCommand{}
	case cmdClose:
		c = &CloseCommand{}
	case cmdContest:
		c = &ContestCommand{}
	case cmdAbort:
		c = &AbortCommand{}
	case cmdGetUTxO:
		c = &GetUTxOCommand{}
	default:
		return nil, fmt.Errorf("unknown command type %q", env.Type)
	}

	if err := decodeStrict(env.Body, c); err != nil {
		return nil, err
	}
	return c, nil
}

/*******************************************************************************
Chain observations
*******************************************************************************/

const (
	obsInit    = "init-tx"
	obsCommit  = "commit-tx"
	obsAbort   = "abort-tx"
	obsCollect = "collect-tx"
	obsClose   = "close-tx"
	obsContest = "contest-tx"
	obsFanout  = "fanout-tx"
)

func encodeObservation(o OnChainTx) ([]byte, error) {
	switch obs := o.(type) {
	case *OnInitTx:
		return wrap(obsInit, obs)
	case *OnCommitTx:
		return wrap(obsCommit, obs)
	case *OnAbortTx:
		return wrap(obsAbort, obs)
	case *OnCollectTx:
		return wrap(obsCollect, obs)
	case *OnCloseTx:
		return wrap(obsClose, obs)
	case *OnContestTx:
		return wrap(obsContest, obs)
	case *OnFanoutTx:
		return wrap(obsFanout, obs)
	default:
		return nil, fmt.Errorf("cannot encode observation %T", o)
	}
}

func decodeObservation(data []byte) (OnChainTx, error) {
	var env envelope
	if err := decodeStrict(data, &env); err != nil {
		return nil, err
	}

	var o OnChainTx
	switch env.Type {
	case obsInit:
		o = &OnInitTx{}
	case obsCommit:
		o = &OnCommitTx{}
	case obsAbort:
		o = &OnAbortTx{}
	case obsCollect:
		o = &OnCollectTx{}
	case obsClose:
		o = &OnCloseTx{}
	case obsContest:
		o = &OnContestTx{}
	case obsFanout:
		o = &OnFanoutTx{}
	default:
		return nil, fmt.Errorf("unknown observation type %q", env.Type)
	}

	if err := decodeStrict(env.Body, o); err != nil {
		return nil, err
	}
	return o, nil
}

/*******************************************************************************
Events
*******************************************************************************/

const (
	evClient   = "client"
	evNetwork  = "network"
	evChain    = "chain"
	evTick     = "tick"
	evRollback = "rollback"
)

type clientEventBody struct {
	Command []byte
}

type networkEventBody struct {
	Message []byte
}

type chainEventBody struct {
	Observation []byte
}

// EncodeEvent returns the canonical encoding of an event, as persisted in the
// journal.
func EncodeEvent(e Event) ([]byte, error) {
	switch ev := e.(type) {
	case *ClientEvent:
		cmd, err := encodeCommand(ev.Command)
		if err != nil {
			return nil, err
		}
		return wrap(evClient, clientEventBody{Command: cmd})
	case *NetworkEvent:
		msg, err := EncodeMessage(ev.Message)
		if err != nil {
			return nil, err
		}
		return wrap(evNetwork, networkEventBody{Message: msg})
	case *ChainEvent:
		obs, err := encodeObservation(ev.Observation)
		if err != nil {
			return nil, err
		}
		return wrap(evChain, chainEventBody{Observation: obs})
	case *TickEvent:
		return wrap(evTick, ev)
	case *RollbackEvent:
		return wrap(evRollback, ev)
	default:
		return nil, fmt.Errorf("cannot encode event %T", e)
	}
}

// DecodeEvent parses a canonical event encoding.
func DecodeEvent(data []byte) (Event, error) {
	var env envelope
	if err := decodeStrict(data, &env); err != nil {
		return nil, err
	}

	switch env.Type {
	case evClient:
		var body clientEventBody
		if err := decodeStrict(env.Body, &body); err != nil {
			return nil, err
		}
		cmd, err := decodeCommand(body.Command)
		if err != nil {
			return nil, err
		}
		return &ClientEvent{Command: cmd}, nil
	case evNetwork:
		var body networkEventBody
		if err := decodeStrict(env.Body, &body); err != nil {
			return nil, err
		}
		msg, err := DecodeMessage(body.Message)
		if err != nil {
			return nil, err
		}
		return &NetworkEvent{Message: msg}, nil
	case evChain:
		var body chainEventBody
		if err := decodeStrict(env.Body, &body); err != nil {
			return nil, err
		}
		obs, err := decodeObservation(body.Observation)
		if err != nil {
			return nil, err
		}
		return &ChainEvent{Observation: obs}, nil
	case evTick:
		ev := &TickEvent{}
		if err := decodeStrict(env.Body, ev); err != nil {
			return nil, err
		}
		return ev, nil
	case evRollback:
		ev := &RollbackEvent{}
		if err := decodeStrict(env.Body, ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}
