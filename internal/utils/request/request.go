package request

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	userAgent      = "kolcred/1.0"
	requestTimeout = 30 * time.Second
	retryCount     = 3
)

var Request = resty.New().SetTransport(&http.Transport{
	Proxy: http.ProxyFromEnvironment, // 通用适配环境变量
}).
	SetRetryCount(retryCount).
	SetTimeout(requestTimeout).
	SetHeader("User-Agent", userAgent)
