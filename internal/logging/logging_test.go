package logging

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigureRepeatedWhileLogging(t *testing.T) {
	Configure(0, "")

	log := Get("test")
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				log.Debugf("tick")
			}
		}
	}()

	for i := 0; i < 100; i++ {
		Configure(0, "")
	}
	close(stop)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, settings{verbosity: 0, path: ""}, *current)
}

func TestGetPrefixesName(t *testing.T) {
	assert.NotNil(t, Get("engine"))
}
