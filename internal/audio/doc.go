// Package audio handles the pendant's audio formats. It decodes the raw
// on-flash sample encodings (unsigned PCM8 and IMA-ADPCM) into canonical
// signed 16-bit little-endian PCM and compresses canonical PCM to MP3.
package audio
