// Package biopb defines small coordinate types shared by the BAM/CRAM
// reading packages (encoding/bam, encoding/bamprovider). Coord and
// CoordRange identify a read's position for sharding and iteration purposes;
// they carry no sequence or alignment data themselves.
package biopb
