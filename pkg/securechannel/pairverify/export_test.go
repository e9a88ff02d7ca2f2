package pairverify

func (s *Session) Secrets() (ephemeral, shared []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ephemeral != nil {
		ephemeral = s.ephemeral.Private[:]
	}
	return ephemeral, s.sharedSecret
}
