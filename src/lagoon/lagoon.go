package lagoon

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/lagoon-network/lagoon/src/chain"
	"github.com/lagoon-network/lagoon/src/config"
	"github.com/lagoon-network/lagoon/src/crypto"
	"github.com/lagoon-network/lagoon/src/crypto/keys"
	"github.com/lagoon-network/lagoon/src/head"
	"github.com/lagoon-network/lagoon/src/journal"
	"github.com/lagoon-network/lagoon/src/ledger"
	lnet "github.com/lagoon-network/lagoon/src/net"
	"github.com/lagoon-network/lagoon/src/node"
	"github.com/lagoon-network/lagoon/src/peers"
	"github.com/lagoon-network/lagoon/src/service"
	"github.com/sirupsen/logrus"
)

// Lagoon is the engine tying together all the components of a head node:
// party set, keys, journal, transport, chain access, node and service.
type Lagoon struct {
	Config    *config.Config
	Node      *node.Node
	Transport lnet.Transport
	Journal   journal.Journal
	Parties   *peers.PartySet
	Follower  *chain.Follower
	Chain     *chain.InmemChain
	Service   *service.Service

	logger *logrus.Entry
}

// NewLagoon ...
func NewLagoon(conf *config.Config) *Lagoon {
	engine := &Lagoon{
		Config: conf,
		logger: conf.Logger(),
	}

	return engine
}

func (l *Lagoon) initKey() error {
	if l.Config.Key == nil {
		pemKey := crypto.NewPemKey(l.Config.DataDir)

		privKey, err := pemKey.ReadKey()

		if err != nil {
			l.logger.Warn("Cannot read private key from file", err)

			privKey, err = Keygen(l.Config.DataDir)

			if err != nil {
				l.logger.Error("Cannot generate a new private key", err)

				return err
			}

			pem, _ := crypto.ToPemKey(privKey)

			l.logger.Info("Created a new key:", pem.PublicKey)
		}

		l.Config.Key = privKey
	}
	return nil
}

func (l *Lagoon) initParties() error {
	partyStore := peers.NewJSONPartySet(l.Config.DataDir)

	parties, err := partyStore.PartySet()
	if err != nil {
		return err
	}

	if parties.Len() < 1 {
		return fmt.Errorf("parties.json should define at least one party")
	}

	l.Parties = parties

	return nil
}

func (l *Lagoon) initJournal() error {
	if !l.Config.Store {
		jrnl, err := journal.NewFileJournal(l.Config.JournalFile(), l.logger)
		if err != nil {
			return err
		}

		l.Journal = jrnl

		l.logger.WithField("path", l.Config.JournalFile()).Debug("opened file journal")
	} else {
		l.logger.WithField("path", l.Config.DatabaseDir).Debug("Attempting to load or create database")

		jrnl, err := journal.NewBadgerJournal(l.Config.DatabaseDir)
		if err != nil {
			return err
		}

		l.Journal = jrnl
	}

	return nil
}

func (l *Lagoon) initTransport() error {
	transport, err := lnet.NewTCPTransport(
		l.Config.BindAddr,
		l.Config.TCPTimeout,
		l.logger,
	)

	if err != nil {
		return err
	}

	l.Transport = transport

	return nil
}

func (l *Lagoon) initNode() error {
	key := l.Config.Key

	nodePub := node.NewValidator(key, l.Config.Moniker).PublicKeyHex()
	party, ok := l.Parties.ByPubKey[nodePub]
	if !ok {
		return fmt.Errorf("cannot find self pubkey in parties.json")
	}

	l.logger.WithFields(logrus.Fields{
		"parties": l.Parties.PubKeys(),
		"id":      party.ID(),
	}).Debug("PARTIES")

	network := chain.Network(l.Config.Network)
	if network != chain.Devnet {
		// a real chain-sync client is not part of this repository
		return fmt.Errorf("network %q is not supported, use devnet", l.Config.Network)
	}

	converter := chain.NewSlotConverter(l.Config.SystemStart, l.Config.SlotLength)
	ctx := chain.NewContext(
		network,
		party,
		l.Parties,
		l.Config.ContestationPeriod,
		converter,
		ledger.OutRef(l.Config.SeedInput),
	)
	local := chain.NewLocalChainState(chain.NewState(), l.Config.Window)
	l.Chain = chain.NewInmemChain()

	env := head.NewEnvironment(key, party, l.Parties, l.Config.ContestationPeriod)

	nodeConf := node.NewConfig(
		l.Config.QueueCapacity,
		l.Config.WaitDepth,
		l.Config.WaitRetries,
		l.Config.PingInterval,
		l.logger,
	)

	l.Node = node.NewNode(
		nodeConf,
		node.NewValidator(key, l.Config.Moniker),
		env,
		ledger.NewSimpleLedger(),
		l.Journal,
		l.Transport,
		ctx,
		local,
		l.Chain,
	)

	l.Follower = chain.NewFollower(ctx, local, l.Node.EmitEvent, l.logger)
	l.Chain.Connect(l.Follower)

	if err := l.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	return nil
}

func (l *Lagoon) initService() error {
	if !l.Config.NoService && l.Config.ServiceAddr != "" {
		l.Service = service.NewService(l.Config.ServiceAddr, l.Node, l.logger)
	}
	return nil
}

// Init initialises all the engine's components in dependency order.
func (l *Lagoon) Init() error {
	if err := l.initKey(); err != nil {
		return err
	}

	if err := l.initParties(); err != nil {
		return err
	}

	if err := l.initJournal(); err != nil {
		return err
	}

	if err := l.initTransport(); err != nil {
		return err
	}

	if err := l.initNode(); err != nil {
		return err
	}

	if err := l.initService(); err != nil {
		return err
	}

	return nil
}

// Run starts the service and the node's main loop.
func (l *Lagoon) Run() {
	if l.Service != nil {
		go l.Service.Serve()
	}

	l.Transport.Listen()

	l.Node.Run()
}

// Keygen generates a new keypair under datadir, refusing to overwrite an
// existing one.
func Keygen(datadir string) (*ecdsa.PrivateKey, error) {
	pemKey := crypto.NewPemKey(datadir)

	_, err := pemKey.ReadKey()

	if err == nil {
		return nil, fmt.Errorf("another key already lives under %s", datadir)
	}

	privKey, err := keys.GenerateECDSAKey()

	if err != nil {
		return nil, err
	}

	if err := pemKey.WriteKey(privKey); err != nil {
		return nil, err
	}

	return privKey, nil
}
