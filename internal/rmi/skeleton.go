package rmi

import (
	"bytes"
	"net"
	"reflect"
	"sync"

	"github.com/nicolagi/dfs/internal/dfserr"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// errNoSuchMethod is returned to the caller when a request's method name
// or parameter-type signature does not match the skeleton's interface. It
// is deliberately not in any method's Declared set, so a Stub always
// re-wraps it as a transport error.
var errNoSuchMethod = errors.New("rmi: no such method")

// Skeleton is the server-side dispatcher: it accepts TCP connections on an
// address, and for each one reads a single request, invokes the matching
// method on a server object by reflection, and writes back a reply.
// Exactly one call is serviced per connection.
type Skeleton struct {
	iface  *Interface
	server reflect.Value
	log    logrus.FieldLogger

	listenErrorHook  func(error) bool
	serviceErrorHook func(error)
	stoppedHook      func(error)

	mu       sync.Mutex
	addr     string
	listener net.Listener
	started  bool
	stopping bool
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Option configures a Skeleton at construction time.
type Option func(*Skeleton)

// WithLogger sets the logger used for the default listen/service error
// hooks. Defaults to logrus.StandardLogger().
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Skeleton) { s.log = log }
}

// WithListenErrorHook overrides the default listen_error hook: return true
// to keep accepting connections after a one-off accept error, false to
// stop the skeleton.
func WithListenErrorHook(f func(error) bool) Option {
	return func(s *Skeleton) { s.listenErrorHook = f }
}

// WithServiceErrorHook overrides the default service_error hook, invoked
// for per-call transport/serialization failures (never for declared
// method errors, which are marshalled to the client unchanged).
func WithServiceErrorHook(f func(error)) Option {
	return func(s *Skeleton) { s.serviceErrorHook = f }
}

// WithStoppedHook overrides the default stopped hook, invoked exactly once
// when the skeleton has fully drained: cause is nil on a clean Stop, or
// the fatal listener error otherwise.
func WithStoppedHook(f func(error)) Option {
	return func(s *Skeleton) { s.stoppedHook = f }
}

// NewSkeleton validates iface and binds server as its implementation.
// Construction fails with dfserr.ErrBadInterface if iface has any method
// not declaring dfserr.ErrTransport, and with dfserr.ErrIllegalArgument if
// server does not implement every method of iface with a compatible
// reflect signature.
func NewSkeleton(iface *Interface, server interface{}, addr string, opts ...Option) (*Skeleton, error) {
	if iface == nil {
		return nil, errors.New("rmi: nil interface")
	}
	if err := checkRemote(iface); err != nil {
		return nil, err
	}
	if server == nil {
		return nil, errors.Wrap(dfserr.ErrIllegalArgument, "rmi: nil server")
	}
	sv := reflect.ValueOf(server)
	for _, m := range iface.Methods {
		fn := sv.MethodByName(m.Name)
		if !fn.IsValid() {
			return nil, errors.Wrapf(dfserr.ErrIllegalArgument, "rmi: server missing method %q", m.Name)
		}
		if err := checkMethodShape(fn.Type(), m); err != nil {
			return nil, errors.Wrapf(dfserr.ErrIllegalArgument, "rmi: method %q: %v", m.Name, err)
		}
	}
	s := &Skeleton{
		iface:  iface,
		server: sv,
		addr:   addr,
		log:    logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.listenErrorHook == nil {
		s.listenErrorHook = func(err error) bool {
			s.log.WithError(err).Warn("rmi: accept error, continuing")
			return true
		}
	}
	if s.serviceErrorHook == nil {
		s.serviceErrorHook = func(err error) {
			s.log.WithError(err).Warn("rmi: service error")
		}
	}
	if s.stoppedHook == nil {
		s.stoppedHook = func(cause error) {
			if cause == nil {
				s.log.Info("rmi: skeleton stopped")
			} else {
				s.log.WithError(cause).Error("rmi: skeleton stopped with cause")
			}
		}
	}
	return s, nil
}

func checkRemote(iface *Interface) error {
	for _, m := range iface.Methods {
		if !declaresTransport(m.Declared) {
			return errors.Wrapf(dfserr.ErrBadInterface, "method %q does not declare transport error", m.Name)
		}
	}
	return nil
}

func checkMethodShape(fnType reflect.Type, m Method) error {
	if fnType.NumIn() != len(m.In) {
		return errors.Errorf("want %d parameters, server method has %d", len(m.In), fnType.NumIn())
	}
	for i, t := range m.In {
		if fnType.In(i) != t {
			return errors.Errorf("parameter %d: want %s, server method has %s", i, t, fnType.In(i))
		}
	}
	wantOut := 1
	if m.Out != nil {
		wantOut = 2
	}
	if fnType.NumOut() != wantOut {
		return errors.Errorf("want %d return values, server method has %d", wantOut, fnType.NumOut())
	}
	if m.Out != nil && fnType.Out(0) != m.Out {
		return errors.Errorf("return value: want %s, server method has %s", m.Out, fnType.Out(0))
	}
	errType := reflect.TypeOf((*error)(nil)).Elem()
	if fnType.Out(wantOut-1) != errType {
		return errors.Errorf("last return value must be error")
	}
	return nil
}

// Addr returns the bound listener address. It is only meaningful once
// Start has returned successfully.
func (s *Skeleton) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start binds a TCP listener — picking an ephemeral port if the
// configured address has none — and spawns the accept task. It fails with
// dfserr.ErrIllegalState if already started.
func (s *Skeleton) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.Wrap(dfserr.ErrIllegalState, "rmi: skeleton already started")
	}
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrap(dfserr.ErrTransport, err.Error())
	}
	s.listener = l
	s.addr = l.Addr().String()
	s.started = true
	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Skeleton) acceptLoop() {
	defer s.wg.Done()
	var fatal error
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			stopping := s.stopping
			s.mu.Unlock()
			if stopping {
				break
			}
			if s.listenErrorHook(err) {
				continue
			}
			fatal = err
			break
		}
		s.wg.Add(1)
		go s.service(conn)
	}
	s.finish(fatal)
}

func (s *Skeleton) finish(cause error) {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		s.stoppedHook(cause)
	})
}

func (s *Skeleton) service(conn net.Conn) {
	defer s.wg.Done()
	defer func() { _ = conn.Close() }()

	var req request
	if err := decode(conn, &req); err != nil {
		s.serviceErrorHook(errors.Wrap(err, "rmi: decode request"))
		return
	}

	rep := s.dispatch(req)

	if err := encode(conn, rep); err != nil {
		s.serviceErrorHook(errors.Wrap(err, "rmi: encode reply"))
	}
}

func (s *Skeleton) dispatch(req request) reply {
	m, ok := s.iface.method(req.Method)
	if !ok || !sameSignature(m, req.ParamTypes) {
		return reply{OK: false, ErrMessage: errNoSuchMethod.Error(), ErrSentinel: -1}
	}

	args := make([]reflect.Value, len(m.In))
	for i, t := range m.In {
		ptr := reflect.New(t)
		if err := decode(bytes.NewReader(req.Args[i]), ptr.Interface()); err != nil {
			// A malformed argument is a transport-layer concern.
			return reply{OK: false, ErrMessage: errors.Wrap(dfserr.ErrTransport, err.Error()).Error(), ErrSentinel: -1}
		}
		args[i] = ptr.Elem()
	}

	results := s.server.MethodByName(m.Name).Call(args)
	errVal := results[len(results)-1]
	if !errVal.IsNil() {
		err := errVal.Interface().(error)
		return reply{OK: false, ErrMessage: err.Error(), ErrSentinel: m.sentinelIndex(err)}
	}
	if m.Out == nil {
		return reply{OK: true}
	}
	payload, err := encodeValue(results[0].Interface())
	if err != nil {
		return reply{OK: false, ErrMessage: errors.Wrap(dfserr.ErrTransport, err.Error()).Error(), ErrSentinel: -1}
	}
	return reply{OK: true, Payload: payload}
}

func sameSignature(m Method, paramTypes []string) bool {
	if len(paramTypes) != len(m.In) {
		return false
	}
	for i, t := range m.In {
		if paramTypes[i] != t.String() {
			return false
		}
	}
	return true
}

// Stop requests the skeleton cease serving. It is idempotent: closing the
// listener causes the accept task to exit, in-flight service tasks are
// allowed to finish their current call, and Stop blocks until all of them
// have drained. The stopped hook fires exactly once, with a nil cause.
func (s *Skeleton) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.stopping = true
	l := s.listener
	s.mu.Unlock()

	_ = l.Close()
	s.wg.Wait()
	s.finish(nil)
}
