// Package references finds and rewrites Markdown references to image files.
//
// Four syntaxes are recognised: standard images ![alt](target), standard
// links [text](target), wiki embeds ![[target|alias]] and wiki links
// [[target|alias]]. Each match is parsed once into a types.Capture so the
// rewriter only swaps the filename component and leaves alt text, link text,
// titles, aliases and percent-encoding alone. A rewritten destination that
// gains whitespace is wrapped in angle brackets.
//
// Matches never overlap. In a linked image such as [![b](old.png)](old.png)
// only the inner image is found, so the outer link keeps its old target.
package references
