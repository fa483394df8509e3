package jwt

type Token struct {
	Valid bool
}

type Claims interface{}

type Keyfunc func(*Token) (interface{}, error)

type Parser struct{}

func Parse(tokenString string, keyFunc Keyfunc) (*Token, error) {
	return &Token{}, nil
}

func ParseWithClaims(tokenString string, claims Claims, keyFunc Keyfunc) (*Token, error) {
	return &Token{}, nil
}

func (p *Parser) ParseUnverified(tokenString string, claims Claims) (*Token, []string, error) {
	return &Token{}, nil, nil
}

func NewWithClaims(claims Claims) *Token {
	return &Token{}
}
