package utils

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// AuthCache holds decoded access token claims keyed by the raw token.
var AuthCache = cache.New(time.Minute*5, time.Second*30)
