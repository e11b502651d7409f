// Package separator locates uniform-color separator lines in a document
// image and cuts the image into the content regions between them.
//
// Detection works on the red channel only. A handful of evenly spaced
// columns are sampled, the most widespread non-background intensity is
// taken as the separator color, and every row carrying that color across
// most of its width becomes a separator. Vertical separators are found the
// same way on the image turned clockwise.
package separator
