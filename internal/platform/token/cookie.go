package token

import "net/http"

// CookieStore keeps the token pair in two HTTP-only cookies on the client.
// Reads come from the request's cookie jar; writes go out as Set-Cookie
// headers on the response. Values written during the request shadow the
// request cookies so a mid-request refresh is immediately visible to later
// reads.
type CookieStore struct {
	req     *http.Request
	resp    http.ResponseWriter
	policy  Policy
	written map[Kind]string
	cleared bool
}

func NewCookieStore(req *http.Request, resp http.ResponseWriter, policy Policy) *CookieStore {
	return &CookieStore{
		req:     req,
		resp:    resp,
		policy:  policy,
		written: make(map[Kind]string),
	}
}

func (s *CookieStore) Get(kind Kind) string {
	if s.cleared {
		return ""
	}
	if v, ok := s.written[kind]; ok {
		return v
	}
	cookie, err := s.req.Cookie(string(kind))
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (s *CookieStore) Set(pair Pair) {
	s.cleared = false
	s.written[Access] = pair.Access
	s.written[Refresh] = pair.Refresh
	s.write(Access, pair.Access, int(s.policy.AccessTTL.Seconds()))
	s.write(Refresh, pair.Refresh, int(s.policy.RefreshTTL.Seconds()))
}

func (s *CookieStore) Clear() {
	s.cleared = true
	s.written = make(map[Kind]string)
	s.write(Access, "", -1)
	s.write(Refresh, "", -1)
}

func (s *CookieStore) write(kind Kind, value string, maxAge int) {
	http.SetCookie(s.resp, &http.Cookie{
		Name:     string(kind),
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.policy.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
