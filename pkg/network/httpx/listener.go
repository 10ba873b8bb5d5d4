package httpx

import (
	"errors"
	"net"
	"os"
	"runtime"
	"strconv"
	"syscall"
)

const maxPortRollAttempts = 42

type Listener struct {
	net.Listener
}

func NewListener(address string, rollPorts bool) (*Listener, error) {
	ls, err := net.Listen("tcp4", address)
	if err != nil {
		if rollPorts && isErrorAddressAlreadyInUse(err) {
			host, port, e := net.SplitHostPort(address)
			if e != nil {
				return nil, err
			}
			p, e := strconv.Atoi(port)
			if e != nil {
				return nil, err
			}
			for i := p + 1; i < p+maxPortRollAttempts; i++ {
				ls, err = net.Listen("tcp4", host+":"+strconv.Itoa(i))
				if err == nil {
					return &Listener{ls}, nil
				}
			}
		}
		return nil, err
	}
	return &Listener{ls}, nil
}

func (l Listener) GetPort() int {
	if addr, ok := l.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

func isErrorAddressAlreadyInUse(err error) bool {
	var eOsSyscall *os.SyscallError
	if !errors.As(err, &eOsSyscall) {
		return false
	}
	var errErrno syscall.Errno
	if !errors.As(eOsSyscall, &errErrno) {
		return false
	}
	if errErrno == syscall.EADDRINUSE {
		return true
	}
	const WSAEADDRINUSE = 10048
	if runtime.GOOS == "windows" && errErrno == WSAEADDRINUSE {
		return true
	}
	return false
}
