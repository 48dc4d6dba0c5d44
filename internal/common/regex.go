package common

import (
	"regexp"
	"sync"
)

var (
	regexCacheMu sync.RWMutex
	regexCache   = make(map[string]*regexp.Regexp)
)

// MatchRegex reports whether pattern matches text. Compiled patterns are
// cached because matching runs once per transaction/pattern pair during
// a reconcile pass. Returns an error for an invalid pattern.
func MatchRegex(pattern, text string) (bool, error) {
	regexCacheMu.RLock()
	re, ok := regexCache[pattern]
	regexCacheMu.RUnlock()

	if !ok {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			return false, err
		}
		regexCacheMu.Lock()
		regexCache[pattern] = re
		regexCacheMu.Unlock()
	}

	return re.MatchString(text), nil
}
