package facts

// KeyError is a subscript that may raise at runtime: the key is not among
// the literal keys of any dictionary the subscripted name may denote.
type KeyError struct {
	Filename  string `json:"filename"`
	Line      int    `json:"lineno"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
}

type KeyErrors struct {
	errs []KeyError
	seen map[KeyError]struct{}
}

func NewKeyErrors() *KeyErrors {
	return &KeyErrors{seen: make(map[KeyError]struct{})}
}

// Add records a finding once.
func (k *KeyErrors) Add(filename string, line int, namespace, key string) {
	ke := KeyError{Filename: filename, Line: line, Namespace: namespace, Key: key}
	if _, ok := k.seen[ke]; ok {
		return
	}
	k.seen[ke] = struct{}{}
	k.errs = append(k.errs, ke)
}

// All returns the findings in discovery order.
func (k *KeyErrors) All() []KeyError {
	out := make([]KeyError, len(k.errs))
	copy(out, k.errs)
	return out
}

func (k *KeyErrors) Len() int {
	return len(k.errs)
}
