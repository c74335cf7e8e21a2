package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/w1xm/rccar_interface/command"
	"github.com/w1xm/rccar_interface/drive"
	"github.com/w1xm/rccar_interface/simulator"
	"go.uber.org/zap"
)

// Status is what /api/status and /api/ws report.
type Status struct {
	Drive     drive.Status
	Simulator *simulator.Status `json:",omitempty"`
}

// Server funnels every command source into a single drive controller.
type Server struct {
	logger   *zap.SugaredLogger
	password string

	// mu serializes all access to drive and interp.
	mu      sync.Mutex
	drive   *drive.Controller
	interp  *command.Interpreter
	clients int
	// lastSource names the source of the last command that was applied.
	lastSource string

	statusMu   sync.RWMutex
	statusCond *sync.Cond
	status     Status
	statusNum  int
}

func NewServer(logger *zap.SugaredLogger, password string) *Server {
	s := &Server{logger: logger, password: password}
	s.statusCond = sync.NewCond(s.statusMu.RLocker())
	return s
}

// Attach sets the controller commands are applied to.
func (s *Server) Attach(c *drive.Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drive = c
	s.interp = command.NewInterpreter(s.logger.Named("command"), c)
	s.driveStatusCallback(c.Status())
}

// wsSourcePrefix marks command sources that are websocket connections.
const wsSourcePrefix = "ws "

// Handle applies one text command from source. It is safe to call from any
// goroutine.
func (s *Server) Handle(source, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.interp.Handle(text)
	if ok {
		s.lastSource = source
	}
	return ok
}

// Stop brakes the car.
func (s *Server) Stop() {
	s.Handle("server", "stop")
}

// DriveStatus returns the last reported drive status.
func (s *Server) DriveStatus() drive.Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status.Drive
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) authorized(w http.ResponseWriter, r *http.Request) bool {
	if s.password == "" {
		return true
	}
	_, pass, ok := r.BasicAuth()
	if !ok || pass != s.password {
		w.Header().Set("WWW-Authenticate", `Basic realm="car"`)
		http.Error(w, "wrong password", http.StatusUnauthorized)
		return false
	}
	return true
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	s.statusMu.RLock()
	status := s.status
	s.statusMu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(status)
	if err != nil {
		s.logger.Errorw("encoding status", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Write(data)
}

// CommandSocketHandler reads one command per text message. Binary messages
// are ignored. When the last command socket closes and the last applied
// command came from a websocket, the car is stopped.
func (s *Server) CommandSocketHandler(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("upgrading command socket", "error", err)
		return
	}
	defer conn.Close()
	s.logger.Infow("ws connect", "remote", r.RemoteAddr)
	source := wsSourcePrefix + r.RemoteAddr

	s.mu.Lock()
	s.clients++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.clients--
		s.logger.Infow("ws disconnect", "remote", r.RemoteAddr, "remaining", s.clients)
		if s.clients == 0 && strings.HasPrefix(s.lastSource, wsSourcePrefix) {
			s.interp.Handle("stop")
			s.lastSource = source
		}
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debugw("reading command socket", "remote", r.RemoteAddr, "error", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		s.Handle(source, string(data))
	}
}

// StatusSocketHandler pushes the status as JSON every time it changes.
func (s *Server) StatusSocketHandler(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("upgrading status socket", "error", err)
		return
	}
	defer conn.Close()

	// Read and discard incoming messages so close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()
	go func() {
		<-ctx.Done()
		s.statusMu.Lock()
		s.statusCond.Broadcast()
		s.statusMu.Unlock()
	}()

	last := -1
	for {
		status, num, err := s.nextStatus(ctx, last)
		if err != nil {
			return
		}
		last = num
		if err := conn.WriteJSON(status); err != nil {
			s.logger.Debugw("writing status socket", "remote", r.RemoteAddr, "error", err)
			return
		}
	}
}

// nextStatus waits for a status newer than last.
func (s *Server) nextStatus(ctx context.Context, last int) (Status, int, error) {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	for s.statusNum == last {
		if err := ctx.Err(); err != nil {
			return Status{}, last, err
		}
		s.statusCond.Wait()
	}
	if err := ctx.Err(); err != nil {
		return Status{}, last, err
	}
	return s.status, s.statusNum, nil
}

func (s *Server) updateStatus(f func(*Status)) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	f(&s.status)
	s.statusNum++
	s.statusCond.Broadcast()
}

func (s *Server) driveStatusCallback(status drive.Status) {
	s.updateStatus(func(st *Status) { st.Drive = status })
}

func (s *Server) simulatorStatusCallback(status simulator.Status) {
	s.updateStatus(func(st *Status) { st.Simulator = &status })
}
