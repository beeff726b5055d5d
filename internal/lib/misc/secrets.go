/*
 * Copyright (c) 2024. Hatm Labs.
 * All Rights reserved.
 */
package misc

import (
	"os"
	"strings"
	"sync"
)

var (
	secretsMu  sync.Mutex
	secretsMap = map[string]string{}
)

func SecretKeys() []string {
	var uniqKeys = map[string]bool{}
	for _, envVal := range os.Environ() {
		key := envVal[0:strings.IndexByte(envVal, '=')]
		uniqKeys[key] = true
	}
	secretsMu.Lock()
	for k := range secretsMap {
		uniqKeys[k] = true
	}
	secretsMu.Unlock()
	var retStrings []string
	for k := range uniqKeys {
		retStrings = append(retStrings, k)
	}
	return retStrings
}

// GetSecret resolves a secret by key - directly from the environment, from a
// previously resolved value, or via a KEY_FILE env var naming a mounted
// secret file (docker/k8s secret mounts).
func GetSecret(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	secretsMu.Lock()
	defer secretsMu.Unlock()
	if value, found := secretsMap[key]; found {
		return value
	}
	if fileName := os.Getenv(key + "_FILE"); fileName != "" {
		if data, err := os.ReadFile(fileName); err == nil {
			value := strings.TrimSpace(string(data))
			secretsMap[key] = value
			return value
		}
	}
	return ""
}
