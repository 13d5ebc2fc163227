// Package watcher reports changes to the plugin manifest directory.
//
// fsnotify is used where available, with polling as a fallback for file
// systems that do not deliver events. Events for the same file are coalesced
// over a debounce window and delivered in batches:
//
//	w, err := watcher.New(dir, watcher.Options{Filter: plugin.IsManifest})
//	if err != nil {
//	    return err
//	}
//	go func() { _ = w.Run(ctx) }()
//	for batch := range w.Events() {
//	    for _, ev := range batch {
//	        // ev.Operation is OpCreate, OpModify or OpDelete
//	    }
//	}
package watcher
