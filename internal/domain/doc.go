// Package domain models hazard prediction requests and their outcomes.
//
// # Hazard Table
//
// Each hazard type maps to a fixed input contract and endpoint:
//
//	hazard      columns  window rows  path                 sample field
//	cyclone     6        64           /predict/cyclone     spectrogram
//	earthquake  129      64           /predict/earthquake  spectrogram
//
// Cyclone rows are six meteorological features per time step. Earthquake
// rows are 129 spectrogram frequency bins per time step. Additional hazards
// are added by extending the table (see LoadHazardTable), never by branching
// on the hazard name.
//
// # Input Shape
//
// User input is JSON text. After decoding it is classified before any check:
//
//	scalar   anything that is not an array          -> rejected (not_array)
//	empty    []                                     -> rejected (empty_input)
//	flat     [0.6, 0.4, ...]                        -> wrapped as one row
//	nested   [[0.6, 0.4, ...], [...], ...]          -> rows as given
//
// A normalized matrix is accepted when every row has exactly the hazard's
// column count and the row count is 1 (single sample) or the window size
// (full window). Columns are checked before rows.
//
// # Results
//
// The remote endpoint answers with {"probability": p} or {"error": msg}.
// Any non-2xx status is a transport failure regardless of body. A
// probability above 0.5 derives the Danger display state, anything else
// Safe; no result derives Neutral.
package domain
