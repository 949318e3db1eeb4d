// Package commitlog records what every commit did to the host tree.
//
// A Log is installed as a reconciler observer next to a vdom.Host. When a
// commit finishes it takes the host's patches and stores them as a Record
// together with the expiration time, effect count and commit duration.
// Subscribers see each record as it is made; the server streams them to
// websocket clients.
//
//	host := vdom.NewHost(sched)
//	log := commitlog.New(host)
//	r := reconciler.New(host, sched, reconciler.WithObserver(log))
//
// Records can be flushed to a Sink: WriterSink and FileSink write JSON
// lines, S3Sink uploads each batch as one object.
package commitlog
