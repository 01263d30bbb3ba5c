package constants

type ContextKey string

const (
	PoolKey      ContextKey = "pool"
	TxKey        ContextKey = "tx"
	ActorKey     ContextKey = "actor"
	RequestIDKey ContextKey = "request-id"
	LoggerKey    ContextKey = "logger"
)
