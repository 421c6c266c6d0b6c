/*
Package resilience provides a circuit breaker.

The terminal server runs every shell spawn through one, so a broken shell
configuration fails new sessions fast instead of forking a doomed process
for each of them.

	spawn := resilience.New("shell-spawn", resilience.Settings{
		Trip: resilience.ConsecutiveFailures(5),
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("breaker", zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})
	err := spawn.Do(func() error { return start() })

	Closed --[Trip]--> Open --[Cooldown]--> Half-Open --[HalfOpenMax successes]--> Closed
	                                            |
	                                        [failure]
	                                            v
	                                          Open
*/
package resilience
