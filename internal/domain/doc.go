// Package domain models earthquake records from the USGS real-time summary
// feeds and the display logic derived from them.
//
// # Data Source
//
// Records come from the GeoJSON summary feeds published at
// https://earthquake.usgs.gov/earthquakes/feed/v1.0/geojson.php. Each feed is
// a FeatureCollection; every feature is one event:
//
//	id                      stable event id, e.g. "us7000abcd"
//	geometry.coordinates    [longitude, latitude, depth in km]
//	properties.mag          magnitude, may be null for fresh events
//	properties.place        human readable location, may be null
//	properties.time         origin time, epoch milliseconds
//	properties.url          event page on earthquake.usgs.gov
//
// Null magnitudes and depths are kept as nil pointers. Such records still
// appear in the list but are not drawn as circles on the map.
//
// # Visual Encoding
//
// Color bands use inclusive lower bounds:
//
//	M >= 6   red
//	M >= 5   dark orange
//	M >= 4   orange
//	M >= 3   light orange
//	else     yellow
//
// Circle radius is 5000 m per magnitude unit, scaled by a banded multiplier
// from a [RadiusTable]. Two tables are built in ("classic" and "extended"),
// and a custom one can be loaded from YAML.
//
// # Identity
//
// The USGS event id is the reconciliation key. Stored documents carry it as
// usgs_id; repeated observations update the stored record in place.
package domain
