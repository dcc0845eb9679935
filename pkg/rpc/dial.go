package rpc

import (
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

func insecureCredentials() credentials.TransportCredentials {
	return insecure.NewCredentials()
}
