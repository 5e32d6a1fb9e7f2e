// Package segment holds the dub segment model, the keyed store of
// synthesized audio buffers, and the project aggregate that ties the
// segment list and store together for one open dubbing session.
package segment
