/*

Package bestserver tracks which configured nameserver a resolver engine should send the next query
to, and records how each nameserver has been doing so that a failing one is rotated away from.

The bestserver structure contains a list of all available servers; what a server represents is
unknown to this package beyond its Name(), which the resolver engine fills with the server's
"host:port" dial address.

After a server is used, the caller calls this package to record success or failure. That data is
used internally to influence which server is chosen next.

Typical usage looks like this:

 bs, _ := bestServer.NewTraditional(bestServer.TraditionalConfig{}, ServerList) // Construct a collection
 for {
      server, _ := bs.Best()                                                 // Get current best server
      doStuffWithServer(server.Name())                                       // Use it
      bs.Result(server, success bool, when time.Time, latency time.Duration) // Say how it went
 }

A call to Result() with the current best server causes a reassessment of the best server. Calls to
Best() will always return the same server details if no intervening calls to Result() have been
made.

Callers must not cache returns from Best() as that distorts the reassessment algorithm.

This package currently implements one selection algorithm, 'traditional', created with
NewTraditional(). It mimics nameserver selection by res_send(3) as described in RESOLVER(3): the
first server is used until it fails, then the next server is used until it fails and so on. Once
the end of the server list is reached, the algorithm wraps around to the first server and the
process repeats.

The expectation is that there are a relatively small number of servers; the resolver engine itself
bounds this to MaxServers (five).

Multiple goroutines can safely invoke all the Manager interface methods concurrently, though the
resolver engine itself only ever calls from the one goroutine that owns its *Resolver.
*/
package bestserver
