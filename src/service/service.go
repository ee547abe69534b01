package service

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"sync"

	"github.com/lagoon-network/lagoon/src/head"
	"github.com/lagoon-network/lagoon/src/ledger"
	"github.com/lagoon-network/lagoon/src/node"
	"github.com/sirupsen/logrus"
)

// Service exposes the node's status and accepts client commands over HTTP.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the DefaultServerMux of
// the http package. It is possible that another server in the same process
// is simultaneously using the DefaultServerMux. In which case, the handlers
// will be accessible from both servers.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering Lagoon API handlers")
	http.HandleFunc("/stats", s.makeHandler(s.GetStats))
	http.HandleFunc("/state", s.makeHandler(s.GetState))
	http.HandleFunc("/parties", s.makeHandler(s.GetParties))
	http.HandleFunc("/snapshot", s.makeHandler(s.GetSnapshot))
	http.HandleFunc("/commands/", s.makeHandler(s.PostCommand))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Serve calls ListenAndServe. This is a blocking call. It is not necessary
// to call Serve when another server has already been started with the
// DefaultServerMux and the same address:port combination.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving Lagoon API")

	err := http.ListenAndServe(s.bindAddress, nil)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats returns operational statistics.
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// GetState returns the head status and local UTxO view.
func (s *Service) GetState(w http.ResponseWriter, r *http.Request) {
	st := s.node.HeadState()

	res := map[string]interface{}{
		"status": st.Status.String(),
	}
	if st.LocalUTxO != nil {
		res["local_utxo"] = st.LocalUTxO
	}
	if st.Status == head.Final {
		res["final_utxo"] = st.FinalUTxO
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

// GetParties returns the party set.
func (s *Service) GetParties(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.node.GetParties())
}

// GetSnapshot returns the confirmed snapshot.
func (s *Service) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	st := s.node.HeadState()
	if st.ConfirmedSnapshot == nil {
		http.Error(w, "no confirmed snapshot", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st.ConfirmedSnapshot.Snapshot)
}

// commandBody is the JSON body of POST /commands/<name>.
type commandBody struct {
	UTxO ledger.UTxO `json:"utxo,omitempty"`
	Tx   *ledger.Tx  `json:"tx,omitempty"`
}

// PostCommand submits a client command to the node. The terminal
// notification is delivered on the node's notification stream, not in the
// HTTP response.
func (s *Service) PostCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	name := r.URL.Path[len("/commands/"):]

	var body commandBody
	if r.Body != nil {
		buf, err := ioutil.ReadAll(r.Body)
		if err == nil && len(buf) > 0 {
			if err := json.Unmarshal(buf, &body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
	}

	var cmd head.Command
	switch name {
	case "init":
		cmd = &head.InitCommand{}
	case "commit":
		cmd = &head.CommitCommand{UTxO: body.UTxO}
	case "new-tx":
		if body.Tx == nil {
			http.Error(w, "tx required", http.StatusBadRequest)
			return
		}
		cmd = &head.NewTxCommand{Tx: body.Tx}
	case "close":
		cmd = &head.CloseCommand{}
	case "abort":
		cmd = &head.AbortCommand{}
	case "get-utxo":
		cmd = &head.GetUTxOCommand{}
	default:
		http.Error(w, "unknown command "+name, http.StatusNotFound)
		return
	}

	s.node.Submit(cmd)
	w.WriteHeader(http.StatusAccepted)
}
