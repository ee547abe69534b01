package head

import (
	"github.com/lagoon-network/lagoon/src/ledger"
)

// Command is a client request submitted to the node. An invalid command in the
// current state yields a CommandFailed notification, never an error outcome.
type Command interface {
	isCommand()
	Name() string
}

// InitCommand asks the node to post the init transaction with the configured
// parties and contestation period.
type InitCommand struct{}

// CommitCommand deposits a UTxO set into the initialising head.
type CommitCommand struct {
	UTxO ledger.UTxO
}

// NewTxCommand submits a transaction to the open head.
type NewTxCommand struct {
	Tx *ledger.Tx
}

// CloseCommand closes the head with the current confirmed snapshot.
type CloseCommand struct{}

// ContestCommand posts a contest transaction when a better snapshot is known.
// It is also scheduled internally after observing a close with a stale
// snapshot.
type ContestCommand struct{}

// AbortCommand aborts an initialising head, reimbursing the commits.
type AbortCommand struct{}

// GetUTxOCommand requests the current UTxO set.
type GetUTxOCommand struct{}

func (c *InitCommand) isCommand()    {}
func (c *CommitCommand) isCommand()  {}
func (c *NewTxCommand) isCommand()   {}
func (c *CloseCommand) isCommand()   {}
func (c *ContestCommand) isCommand() {}
func (c *AbortCommand) isCommand()   {}
func (c *GetUTxOCommand) isCommand() {}

// Name ...
func (c *InitCommand) Name() string { return "init" }

// Name ...
func (c *CommitCommand) Name() string { return "commit" }

// Name ...
func (c *NewTxCommand) Name() string { return "new-tx" }

// Name ...
func (c *CloseCommand) Name() string { return "close" }

// Name ...
func (c *ContestCommand) Name() string { return "contest" }

// Name ...
func (c *AbortCommand) Name() string { return "abort" }

// Name ...
func (c *GetUTxOCommand) Name() string { return "get-utxo" }
