package pairsetup

import "github.com/backkem/homekit/pkg/crypto/srp"

func (s *Session) SRPClient() *srp.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.srp
}
